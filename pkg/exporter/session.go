package exporter

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Session timer defaults used by the chat page
const (
	DefaultSessionLength = 3 * time.Minute
	DefaultExportGrace   = 2 * time.Second
)

// DefaultWarnings are the remaining-time marks at which the page warns the user
var DefaultWarnings = []time.Duration{30 * time.Second, 20 * time.Second, 10 * time.Second}

// Session buffers the transcript of one chat session. The session token is
// generated once at creation and reused by every export attempt, and at most
// one export is issued per session no matter how many triggers fire.
type Session struct {
	exporter *TranscriptExporter

	mu        sync.Mutex
	id        string
	startedAt time.Time
	entries   []TranscriptEntry
	exported  bool
}

// NewSession starts a session with an empty transcript
func NewSession(exporter *TranscriptExporter) *Session {
	return &Session{
		exporter:  exporter,
		id:        NewSessionID(),
		startedAt: exporter.client.now(),
	}
}

// ID returns the session token
func (s *Session) ID() string {
	return s.id
}

// Append records an entry from the SDK event stream
func (s *Session) Append(e TranscriptEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Entries returns a snapshot of the raw transcript
func (s *Session) Entries() []TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TranscriptEntry(nil), s.entries...)
}

// Clear empties the transcript buffer
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Exported reports whether an export has been issued for this session
func (s *Session) Exported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exported
}

// Export delivers a snapshot of the transcript. Only the first call performs
// a network write; later calls return ErrAlreadyExported. A failed export is
// not retried.
func (s *Session) Export(ctx context.Context, exit ExitMethod) (*TranscriptResult, error) {
	s.mu.Lock()
	if s.exported {
		s.mu.Unlock()
		return nil, ErrAlreadyExported
	}
	s.exported = true
	snapshot := append([]TranscriptEntry(nil), s.entries...)
	duration := s.exporter.client.now().Sub(s.startedAt)
	s.mu.Unlock()

	return s.exporter.ExportSession(ctx, s.id, snapshot, exit, duration)
}

// ExportWithGrace exports and waits at most grace for the endpoint. When the
// grace period runs out the request is cancelled so the caller can navigate
// away unconditionally.
func (s *Session) ExportWithGrace(ctx context.Context, exit ExitMethod, grace time.Duration) (*TranscriptResult, error) {
	if grace <= 0 {
		grace = DefaultExportGrace
	}
	ctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	return s.Export(ctx, exit)
}

// TimerConfig drives RunTimer
type TimerConfig struct {
	Total     time.Duration
	Warnings  []time.Duration
	Tick      time.Duration
	Grace     time.Duration
	OnWarning func(remaining time.Duration)
}

// DefaultTimerConfig mirrors the chat page: 3 minutes with warnings at 30, 20 and 10 seconds
func DefaultTimerConfig() TimerConfig {
	return TimerConfig{
		Total:    DefaultSessionLength,
		Warnings: append([]time.Duration(nil), DefaultWarnings...),
		Tick:     time.Second,
		Grace:    DefaultExportGrace,
	}
}

// RunTimer counts the session down, firing OnWarning as each warning mark is
// reached, and performs a TIMER_EXPIRY export when time is up. It returns
// ctx.Err() if the context ends first.
func (s *Session) RunTimer(ctx context.Context, cfg TimerConfig) (*TranscriptResult, error) {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Total <= 0 {
		cfg.Total = DefaultSessionLength
	}

	// largest first so warnings fire in countdown order
	warnings := append([]time.Duration(nil), cfg.Warnings...)
	sort.Slice(warnings, func(i, j int) bool { return warnings[i] > warnings[j] })

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()

	remaining := cfg.Total
	next := 0
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		remaining -= cfg.Tick

		for next < len(warnings) && remaining <= warnings[next] {
			if remaining > 0 && cfg.OnWarning != nil {
				cfg.OnWarning(warnings[next])
			}
			next++
		}
	}

	return s.ExportWithGrace(ctx, ExitTimerExpiry, cfg.Grace)
}
