package tracker

import (
	"sync"
	"time"
)

type (
	// Broker is the message hub between the audio engine, the clock and
	// whatever front end drives a Session. Communication is one way, from
	// the engine side to the front end, with one buffered channel per kind
	// of traffic. Senders never block: if a channel is full, the message is
	// dropped, as a front end that does not keep up only misses a redraw.
	//
	// The broker also has a sync.Pool of audio buffers, so that the engine
	// can pass copies of the rendered audio to a meter or a scope without
	// allocating every time. A receiver of a buffer returns it with
	// PutAudioBuffer once done.
	Broker struct {
		ToUI    chan MsgToUI
		ToMeter chan *[]float32

		bufferPool sync.Pool
	}

	// MsgToUI is a notification for the front end. Kind tells which of the
	// other fields are set.
	MsgToUI struct {
		Kind  MsgKind
		Step  int // MsgStep, MsgHitStarted, MsgHitEnded; -1 = stopped
		Track int // MsgHitStarted, MsgHitEnded
		Alert Alert
		Data  any // MsgRecording: string path, "" when recording stopped
	}

	MsgKind int
)

const (
	MsgNone MsgKind = iota
	MsgStep
	MsgHitStarted
	MsgHitEnded
	MsgAlert
	MsgRecording
)

func NewBroker() *Broker {
	return &Broker{
		ToUI:       make(chan MsgToUI, 1024),
		ToMeter:    make(chan *[]float32, 64),
		bufferPool: sync.Pool{New: func() any { return new([]float32) }},
	}
}

// GetAudioBuffer returns an empty audio buffer from the pool.
func (b *Broker) GetAudioBuffer() *[]float32 {
	return b.bufferPool.Get().(*[]float32)
}

// PutAudioBuffer returns a buffer to the pool, keeping its capacity.
func (b *Broker) PutAudioBuffer(buf *[]float32) {
	*buf = (*buf)[:0]
	b.bufferPool.Put(buf)
}

// Alert sends an alert to the front end without blocking.
func (b *Broker) Alert(message string, alertType AlertType, duration time.Duration) bool {
	return TrySend(b.ToUI, MsgToUI{Kind: MsgAlert, Alert: Alert{Message: message, Type: alertType, Duration: duration}})
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
