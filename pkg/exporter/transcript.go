package exporter

import (
	"context"
	"time"
)

// Message is one filtered utterance inside a transcript envelope
type Message struct {
	Source    Source    `json:"source"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptEnvelope is the payload accepted by the transcript-save route
type TranscriptEnvelope struct {
	SessionID       string     `json:"sessionId"`
	Timestamp       time.Time  `json:"timestamp"`
	Messages        []Message  `json:"messages"`
	MessageCount    int        `json:"messageCount"`
	SessionDuration *float64   `json:"sessionDuration"`
	ExitMethod      ExitMethod `json:"exitMethod"`
}

// BuildTranscriptEnvelope filters entries and packages them for export.
// Entries without a timestamp are stamped with now. A zero duration is
// reported as unknown.
func BuildTranscriptEnvelope(sessionID string, entries []TranscriptEntry, exit ExitMethod, duration time.Duration, now time.Time) TranscriptEnvelope {
	filtered := Filter(entries)
	messages := make([]Message, len(filtered))
	for i, e := range filtered {
		ts := e.Timestamp
		if ts.IsZero() {
			ts = now
		}
		messages[i] = Message{Source: e.Source, Text: e.Text, Timestamp: ts.UTC()}
	}

	var seconds *float64
	if duration > 0 {
		s := duration.Seconds()
		seconds = &s
	}
	if exit == "" {
		exit = ExitUnknown
	}

	return TranscriptEnvelope{
		SessionID:       sessionID,
		Timestamp:       now.UTC(),
		Messages:        messages,
		MessageCount:    len(messages),
		SessionDuration: seconds,
		ExitMethod:      exit,
	}
}

// TranscriptResult is the acknowledgement returned by the transcript-save route
type TranscriptResult struct {
	Success    bool   `json:"success"`
	InsertedID string `json:"insertedId"`
	SessionID  string `json:"sessionId"`
	Message    string `json:"message"`
	Duplicate  bool   `json:"duplicate,omitempty"`
}

// TranscriptExporter delivers transcript envelopes
type TranscriptExporter struct {
	client *Client
}

// NewTranscriptExporter creates an exporter on top of client
func NewTranscriptExporter(client *Client) *TranscriptExporter {
	return &TranscriptExporter{client: client}
}

// Export filters entries and delivers them under a freshly generated session id.
// One call is one network write; failures are returned, never retried.
func (e *TranscriptExporter) Export(ctx context.Context, entries []TranscriptEntry, exit ExitMethod) (*TranscriptResult, error) {
	return e.ExportSession(ctx, NewSessionID(), entries, exit, 0)
}

// ExportSession delivers entries under an existing session token
func (e *TranscriptExporter) ExportSession(ctx context.Context, sessionID string, entries []TranscriptEntry, exit ExitMethod, duration time.Duration) (*TranscriptResult, error) {
	envelope := BuildTranscriptEnvelope(sessionID, entries, exit, duration, e.client.now())

	var result TranscriptResult
	if err := e.client.postJSON(ctx, TranscriptSavePath, envelope, &result); err != nil {
		e.client.log.Error("Failed to export transcript",
			"session_id", envelope.SessionID,
			"exit_method", string(envelope.ExitMethod),
			"error", err.Error(),
		)
		return nil, err
	}
	if result.SessionID == "" {
		result.SessionID = envelope.SessionID
	}

	e.client.log.Info("Transcript exported",
		"session_id", result.SessionID,
		"inserted_id", result.InsertedID,
		"message_count", envelope.MessageCount,
		"exit_method", string(envelope.ExitMethod),
		"duplicate", result.Duplicate,
	)
	return &result, nil
}
