package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field names written or read by the server. Everything else in a stored
// document is the client's envelope, kept verbatim.
const (
	FieldID         = "_id"
	FieldSessionID  = "sessionId"
	FieldFeedbackID = "feedbackId"
	FieldCreatedAt  = "createdAt"
	FieldUpdatedAt  = "updatedAt"
	FieldIPAddress  = "ipAddress"
	FieldUserAgent  = "userAgent"
	FieldContentSum = "contentHash"
)

var (
	ErrEmptyBody = errors.New("request body is empty")
	ErrNotObject = errors.New("envelope must be a JSON object")
)

// Document is an envelope as stored in MongoDB
type Document bson.M

// RequestMeta is the caller information recorded with every write
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// ParseEnvelope decodes a JSON object without validating its content.
// A client-supplied _id is dropped so the store always assigns one.
func ParseEnvelope(raw []byte) (Document, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, ErrEmptyBody
	}
	if trimmed[0] != '{' {
		return nil, ErrNotObject
	}

	var doc Document
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON envelope: %w", err)
	}
	delete(doc, FieldID)
	return doc, nil
}

// Stamp adds the server-side metadata fields
func (d Document) Stamp(meta RequestMeta, now time.Time) {
	ts := primitive.NewDateTimeFromTime(now)
	d[FieldCreatedAt] = ts
	d[FieldUpdatedAt] = ts
	d[FieldIPAddress] = meta.IPAddress
	d[FieldUserAgent] = meta.UserAgent
}

// String returns a top-level string field, or "" when absent or not a string
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// ID returns the hex form of the stored ObjectID
func (d Document) ID() string {
	switch id := d[FieldID].(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return ""
	}
}

var serverFields = map[string]bool{
	FieldID:         true,
	FieldCreatedAt:  true,
	FieldUpdatedAt:  true,
	FieldIPAddress:  true,
	FieldUserAgent:  true,
	FieldContentSum: true,
}

// ContentHash fingerprints the client's envelope, ignoring server fields.
// Two submissions of the same envelope hash the same; "" means the envelope
// could not be encoded and has no fingerprint.
func (d Document) ContentHash() string {
	content := make(map[string]any, len(d))
	for k, v := range d {
		if !serverFields[k] {
			content[k] = v
		}
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
