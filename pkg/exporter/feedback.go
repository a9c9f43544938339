package exporter

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxWrittenFeedback is the longest comment accepted, in characters
const MaxWrittenFeedback = 500

// SubmissionEnterKey is the only submission method the feedback page has
const SubmissionEnterKey = "ENTER_KEY"

// ratingLabels is indexed by star index (0 = one star)
var ratingLabels = [...]string{"Poor", "Fair", "Good", "Very Good", "Excellent!"}

// RatingText returns the label for a star index
func RatingText(rating int) (string, error) {
	if rating < 0 || rating >= len(ratingLabels) {
		return "", fmt.Errorf("%w: %d is outside 0-%d", ErrInvalidRating, rating, len(ratingLabels)-1)
	}
	return ratingLabels[rating], nil
}

// RatingFromKey maps the number keys 1-5 on the feedback page to a star index
func RatingFromKey(key int) (int, error) {
	if key < 1 || key > len(ratingLabels) {
		return 0, fmt.Errorf("%w: key %d is outside 1-%d", ErrInvalidRating, key, len(ratingLabels))
	}
	return key - 1, nil
}

// Feedback is what the user entered on the feedback page
type Feedback struct {
	Rating          int
	RatingText      string // derived from Rating when empty
	WrittenFeedback string
}

// FeedbackEnvelope is the payload accepted by the feedback-save route
type FeedbackEnvelope struct {
	FeedbackID         string    `json:"feedbackId"`
	Timestamp          time.Time `json:"timestamp"`
	Rating             int       `json:"rating"`
	RatingText         string    `json:"ratingText"`
	WrittenFeedback    string    `json:"writtenFeedback"`
	HasWrittenFeedback bool      `json:"hasWrittenFeedback"`
	SubmissionMethod   string    `json:"submissionMethod"`
}

// BuildFeedbackEnvelope validates fb and packages it for export
func BuildFeedbackEnvelope(feedbackID string, fb Feedback, now time.Time) (FeedbackEnvelope, error) {
	label, err := RatingText(fb.Rating)
	if err != nil {
		return FeedbackEnvelope{}, err
	}
	if fb.RatingText != "" && fb.RatingText != label {
		return FeedbackEnvelope{}, fmt.Errorf("%w: label %q does not match rating %d", ErrInvalidRating, fb.RatingText, fb.Rating)
	}

	written := truncateRunes(fb.WrittenFeedback, MaxWrittenFeedback)

	return FeedbackEnvelope{
		FeedbackID:         feedbackID,
		Timestamp:          now.UTC(),
		Rating:             fb.Rating,
		RatingText:         label,
		WrittenFeedback:    written,
		HasWrittenFeedback: strings.TrimSpace(written) != "",
		SubmissionMethod:   SubmissionEnterKey,
	}, nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// FeedbackResult is the acknowledgement returned by the feedback-save route
type FeedbackResult struct {
	Success    bool   `json:"success"`
	InsertedID string `json:"insertedId"`
	FeedbackID string `json:"feedbackId"`
	Message    string `json:"message"`
}

// FeedbackExporter delivers feedback envelopes
type FeedbackExporter struct {
	client *Client
}

// NewFeedbackExporter creates an exporter on top of client
func NewFeedbackExporter(client *Client) *FeedbackExporter {
	return &FeedbackExporter{client: client}
}

// Export validates fb and delivers it in a single network write
func (e *FeedbackExporter) Export(ctx context.Context, fb Feedback) (*FeedbackResult, error) {
	envelope, err := BuildFeedbackEnvelope(NewFeedbackID(), fb, e.client.now())
	if err != nil {
		return nil, err
	}

	var result FeedbackResult
	if err := e.client.postJSON(ctx, FeedbackSavePath, envelope, &result); err != nil {
		e.client.log.Error("Failed to export feedback",
			"feedback_id", envelope.FeedbackID,
			"rating", envelope.Rating,
			"error", err.Error(),
		)
		return nil, err
	}
	if result.FeedbackID == "" {
		result.FeedbackID = envelope.FeedbackID
	}

	e.client.log.Info("Feedback exported",
		"feedback_id", result.FeedbackID,
		"inserted_id", result.InsertedID,
		"rating", envelope.Rating,
		"has_written_feedback", envelope.HasWrittenFeedback,
	)
	return &result, nil
}
