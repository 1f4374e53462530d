package tracker

import "time"

// Alert is a message for the user, e.g. a failed recording. Front ends show
// it for Duration; a new alert replaces the shown one only if it is at least
// as severe.
type Alert struct {
	Message  string
	Type     AlertType
	Duration time.Duration
}

type AlertType int

const (
	None AlertType = iota
	Notify
	Warning
	Error
)

func (t AlertType) String() string {
	switch t {
	case Notify:
		return "notify"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "none"
}

// Replaces tells if the alert should be shown instead of the current one.
func (a Alert) Replaces(current Alert) bool {
	return a.Type >= current.Type
}
