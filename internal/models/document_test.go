package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseEnvelopeKeepsContent(t *testing.T) {
	raw := []byte(`{"sessionId":"session_1","messages":[{"source":"user","text":"Hello"}],"messageCount":1,"sessionDuration":null,"_id":"client-chosen"}`)

	doc, err := ParseEnvelope(raw)
	require.NoError(t, err)

	assert.Equal(t, "session_1", doc.String(FieldSessionID))
	assert.Contains(t, doc, "messages")
	assert.Contains(t, doc, "sessionDuration")
	assert.NotContains(t, doc, FieldID)
}

func TestParseEnvelopeRejectsBadInput(t *testing.T) {
	_, err := ParseEnvelope(nil)
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = ParseEnvelope([]byte(`{"sessionId":`))
	assert.Error(t, err)

	_, err = ParseEnvelope([]byte(`[1,2,3]`))
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestStamp(t *testing.T) {
	doc := Document{}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	doc.Stamp(RequestMeta{IPAddress: "10.0.0.1", UserAgent: "curl/8"}, now)

	assert.Equal(t, primitive.NewDateTimeFromTime(now), doc[FieldCreatedAt])
	assert.Equal(t, doc[FieldCreatedAt], doc[FieldUpdatedAt])
	assert.Equal(t, "10.0.0.1", doc.String(FieldIPAddress))
	assert.Equal(t, "curl/8", doc.String(FieldUserAgent))
}

func TestDocumentID(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.Equal(t, oid.Hex(), Document{FieldID: oid}.ID())
	assert.Equal(t, "", Document{}.ID())
	assert.Equal(t, "", Document{FieldSessionID: 42}.String(FieldSessionID))
}

func TestContentHash(t *testing.T) {
	alice, err := ParseEnvelope([]byte(`{"sessionId":"session_1","messages":[{"source":"user","text":"alice says hi"}]}`))
	require.NoError(t, err)
	again, err := ParseEnvelope([]byte(`{"messages":[{"source":"user","text":"alice says hi"}],"sessionId":"session_1"}`))
	require.NoError(t, err)
	bob, err := ParseEnvelope([]byte(`{"sessionId":"session_1","messages":[{"source":"user","text":"bob says hi"}]}`))
	require.NoError(t, err)

	sum := alice.ContentHash()
	assert.Len(t, sum, 64)
	assert.NotEqual(t, sum, bob.ContentHash())

	again.Stamp(RequestMeta{IPAddress: "10.0.0.9"}, time.Now())
	assert.Equal(t, sum, again.ContentHash())
}
