// Package exporter captures a chat session's transcript and delivers
// transcript and feedback envelopes to the persistence endpoint.
package exporter

import "time"

// Source identifies who produced a transcript entry
type Source string

const (
	SourceUser   Source = "user"
	SourceAgent  Source = "agent"
	SourceSystem Source = "system"
)

// ExitMethod is the event that triggered a transcript export
type ExitMethod string

const (
	ExitEscKey      ExitMethod = "ESC_KEY"
	ExitTimerExpiry ExitMethod = "TIMER_EXPIRY"
	ExitUnknown     ExitMethod = "UNKNOWN"
)

// ParseExitMethod maps free-form input onto a known exit method
func ParseExitMethod(s string) ExitMethod {
	switch ExitMethod(s) {
	case ExitEscKey, ExitTimerExpiry:
		return ExitMethod(s)
	default:
		return ExitUnknown
	}
}

// TranscriptEntry is one utterance reported by the avatar SDK event stream.
// A zero Timestamp means the SDK did not report one.
type TranscriptEntry struct {
	Source    Source    `json:"source"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
