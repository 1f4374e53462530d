package stepbox

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type (
	// WavFormat describes the sample layout of a .wav file written by this
	// package.
	WavFormat struct {
		SampleRate int
		Channels   int
		PCM16      bool // false: 32-bit IEEE float
	}

	// WavWriter streams interleaved float32 audio into a 32-bit float .wav
	// file. The header is written with zero sizes first and patched when the
	// writer is closed, so the length does not need to be known up front.
	// Writes go through a bufio.Writer and a reusable conversion buffer, so
	// that WriteAudio does not allocate once the buffer has grown.
	WavWriter struct {
		ws      io.WriteSeeker
		w       *bufio.Writer
		format  WavFormat
		samples int64
		tmp     []byte
		closed  bool
	}
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3

	// byte offsets of the fields patched on close, for a float header
	riffSizeOffset   = 4
	factLengthOffset = 46
	dataSizeOffset   = 54
)

var ErrWavWriterClosed = errors.New("wav writer is closed")

func (f WavFormat) bytesPerSample() int {
	if f.PCM16 {
		return 2
	}
	return 4
}

// BitDepth returns the bits per sample of the format.
func (f WavFormat) BitDepth() int {
	return 8 * f.bytesPerSample()
}

// Wav encodes a complete interleaved buffer as a .wav file in memory.
func Wav(buffer []float32, format WavFormat) ([]byte, error) {
	buf := new(bytes.Buffer)
	wavHeader(len(buffer), format, buf)
	err := rawToBuffer(buffer, format.PCM16, buf)
	if err != nil {
		return nil, fmt.Errorf("Wav failed: %v", err)
	}
	return buf.Bytes(), nil
}

func rawToBuffer(data []float32, pcm16 bool, buf *bytes.Buffer) error {
	var err error
	if pcm16 {
		int16data := make([]int16, len(data))
		for i, v := range data {
			int16data[i] = toInt16(v)
		}
		err = binary.Write(buf, binary.LittleEndian, int16data)
	} else {
		err = binary.Write(buf, binary.LittleEndian, data)
	}
	if err != nil {
		return fmt.Errorf("could not binary write data to binary buffer: %v", err)
	}
	return nil
}

func toInt16(v float32) int16 {
	return int16(clamp(int(v*math.MaxInt16), math.MinInt16, math.MaxInt16))
}

// wavHeader writes a wave header for either float32 or int16 .wav file into
// the bytes.buffer. bufferLength is the total number of samples over all
// channels.
func wavHeader(bufferLength int, format WavFormat, buf *bytes.Buffer) {
	// Refer to: http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
	numChannels := format.Channels
	sampleRate := format.SampleRate
	bytesPerSample := format.bytesPerSample()
	var chunkSize, fmtChunkSize, waveFormat int
	var factChunk bool
	if format.PCM16 {
		chunkSize = 36 + bytesPerSample*bufferLength
		fmtChunkSize = 16
		waveFormat = wavFormatPCM
		factChunk = false
	} else {
		chunkSize = 50 + bytesPerSample*bufferLength
		fmtChunkSize = 18
		waveFormat = wavFormatFloat
		factChunk = true
	}
	buf.Write([]byte("RIFF"))
	binary.Write(buf, binary.LittleEndian, uint32(chunkSize))
	buf.Write([]byte("WAVE"))
	buf.Write([]byte("fmt "))
	binary.Write(buf, binary.LittleEndian, uint32(fmtChunkSize))
	binary.Write(buf, binary.LittleEndian, uint16(waveFormat))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*numChannels*bytesPerSample)) // avgBytesPerSec
	binary.Write(buf, binary.LittleEndian, uint16(numChannels*bytesPerSample))            // blockAlign
	binary.Write(buf, binary.LittleEndian, uint16(8*bytesPerSample))                      // bits per sample
	if fmtChunkSize > 16 {
		binary.Write(buf, binary.LittleEndian, uint16(0)) // size of extension
	}
	if factChunk {
		buf.Write([]byte("fact"))
		binary.Write(buf, binary.LittleEndian, uint32(4))                        // fact chunk size
		binary.Write(buf, binary.LittleEndian, uint32(bufferLength/numChannels)) // sample frames
	}
	buf.Write([]byte("data"))
	binary.Write(buf, binary.LittleEndian, uint32(bytesPerSample*bufferLength))
}

// NewWavWriter writes a float32 header to ws and returns a writer for the
// sample data.
func NewWavWriter(ws io.WriteSeeker, sampleRate, channels int) (*WavWriter, error) {
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid wav format: %d Hz, %d channels", sampleRate, channels)
	}
	format := WavFormat{SampleRate: sampleRate, Channels: channels}
	var header bytes.Buffer
	wavHeader(0, format, &header)
	w := bufio.NewWriterSize(ws, 64*1024)
	if _, err := w.Write(header.Bytes()); err != nil {
		return nil, fmt.Errorf("could not write wav header: %w", err)
	}
	return &WavWriter{ws: ws, w: w, format: format}, nil
}

// Format returns the format the writer was created with.
func (w *WavWriter) Format() WavFormat {
	return w.format
}

// Samples returns the number of float32 values written so far, over all
// channels.
func (w *WavWriter) Samples() int64 {
	return w.samples
}

// WriteAudio appends interleaved samples to the file.
func (w *WavWriter) WriteAudio(buffer []float32) error {
	if w.closed {
		return ErrWavWriterClosed
	}
	if need := 4 * len(buffer); cap(w.tmp) < need {
		w.tmp = make([]byte, need)
	}
	b := w.tmp[:4*len(buffer)]
	for i, v := range buffer {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("could not write wav data: %w", err)
	}
	w.samples += int64(len(buffer))
	return nil
}

// Close flushes the buffered data and patches the chunk sizes in the
// header. Closing an already closed writer is a no-op. Close does not close
// the underlying io.WriteSeeker.
func (w *WavWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("could not flush wav data: %w", err)
	}
	dataBytes := uint32(4 * w.samples)
	patches := []struct {
		offset int64
		value  uint32
	}{
		{riffSizeOffset, 50 + dataBytes},
		{factLengthOffset, uint32(w.samples / int64(w.format.Channels))},
		{dataSizeOffset, dataBytes},
	}
	var b [4]byte
	for _, p := range patches {
		if _, err := w.ws.Seek(p.offset, io.SeekStart); err != nil {
			return fmt.Errorf("could not seek wav header: %w", err)
		}
		binary.LittleEndian.PutUint32(b[:], p.value)
		if _, err := w.ws.Write(b[:]); err != nil {
			return fmt.Errorf("could not patch wav header: %w", err)
		}
	}
	if _, err := w.ws.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("could not seek wav end: %w", err)
	}
	return nil
}

// WritePCM16Wav encodes an interleaved buffer as a 16-bit PCM .wav file.
func WritePCM16Wav(ws io.WriteSeeker, buffer []float32, sampleRate, channels int) error {
	enc := wav.NewEncoder(ws, sampleRate, 16, channels, wavFormatPCM)
	data := make([]int, len(buffer))
	for i, v := range buffer {
		data[i] = int(toInt16(v))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("could not encode pcm16 wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("could not finish pcm16 wav: %w", err)
	}
	return nil
}
