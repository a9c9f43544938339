package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"dpchat/backend/internal/models"
	"dpchat/backend/internal/repository"
	"dpchat/backend/pkg/cache"
	"dpchat/backend/pkg/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeTranscripts struct {
	mu        sync.Mutex
	docs      []models.Document
	bySession map[string]models.Document
	insertErr error
	getCalls  int
}

func newFakeTranscripts() *fakeTranscripts {
	return &fakeTranscripts{bySession: map[string]models.Document{}}
}

func (f *fakeTranscripts) Insert(_ context.Context, doc models.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return "", f.insertErr
	}
	sid := doc.String(models.FieldSessionID)
	if _, ok := f.bySession[sid]; ok && sid != "" {
		return "", fmt.Errorf("%w: E11000", repository.ErrDuplicate)
	}
	oid := primitive.NewObjectID()
	doc[models.FieldID] = oid
	f.docs = append(f.docs, doc)
	if sid != "" {
		f.bySession[sid] = models.Document{
			models.FieldID:         oid,
			models.FieldContentSum: doc[models.FieldContentSum],
		}
	}
	return oid.Hex(), nil
}

func (f *fakeTranscripts) FindBySessionID(_ context.Context, sessionID string) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.bySession[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return doc, nil
}

func (f *fakeTranscripts) List(_ context.Context, skip, limit int64) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Document{}
	for i := len(f.docs) - 1 - int(skip); i >= 0 && int64(len(out)) < limit; i-- {
		out = append(out, f.docs[i])
	}
	return out, nil
}

func (f *fakeTranscripts) Count(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.docs)), nil
}

func (f *fakeTranscripts) GetByID(_ context.Context, id string) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, repository.ErrInvalidID
	}
	for _, d := range f.docs {
		if d.ID() == id {
			return d, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeFeedback struct {
	docs []models.Document
	err  error
}

func (f *fakeFeedback) Insert(_ context.Context, doc models.Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.docs = append(f.docs, doc)
	return primitive.NewObjectID().Hex(), nil
}

var meta = models.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test-agent"}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		want        Pagination
	}{
		{"defaults", 0, 0, Pagination{Page: 1, Limit: 10}},
		{"negative", -3, -1, Pagination{Page: 1, Limit: 10}},
		{"capped", 2, 500, Pagination{Page: 2, Limit: 100}},
		{"as given", 3, 25, Pagination{Page: 3, Limit: 25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPagination(tt.page, tt.limit))
		})
	}

	p := NewPagination(2, 10).WithTotal(25)
	assert.Equal(t, int64(10), p.Skip())
	assert.Equal(t, int64(math.MaxInt64), NewPagination(math.MaxInt, 100).Skip())
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, NewPagination(1, 10).WithTotal(0).TotalPages)
}

func TestTranscriptSaveStampsMetadata(t *testing.T) {
	repo := newFakeTranscripts()
	svc := NewTranscriptService(repo, Deps{})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res, err := svc.Save(context.Background(), models.Document{
		"sessionId":  "session_1",
		"exitMethod": "USER_EXIT",
	}, meta)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "session_1", res.SessionID)
	assert.NotEmpty(t, res.InsertedID)

	stored := repo.docs[0]
	assert.Equal(t, "10.0.0.1", stored[models.FieldIPAddress])
	assert.Equal(t, "test-agent", stored[models.FieldUserAgent])
	assert.Equal(t, primitive.NewDateTimeFromTime(fixed), stored[models.FieldCreatedAt])
	assert.Equal(t, "USER_EXIT", stored["exitMethod"])
}

func TestTranscriptSaveDuplicateSession(t *testing.T) {
	repo := newFakeTranscripts()
	svc := NewTranscriptService(repo, Deps{})
	ctx := context.Background()

	first, err := svc.Save(ctx, models.Document{"sessionId": "session_1"}, meta)
	require.NoError(t, err)

	second, err := svc.Save(ctx, models.Document{"sessionId": "session_1"}, meta)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.InsertedID, second.InsertedID)
	assert.Len(t, repo.docs, 1)
}

func TestTranscriptSaveSameSessionDifferentContent(t *testing.T) {
	repo := newFakeTranscripts()
	svc := NewTranscriptService(repo, Deps{})
	ctx := context.Background()

	alice := models.Document{"sessionId": "session_1717000000000", "messages": []any{"alice says hi"}}
	bob := models.Document{"sessionId": "session_1717000000000", "messages": []any{"bob says hi"}}

	_, err := svc.Save(ctx, alice, meta)
	require.NoError(t, err)

	res, err := svc.Save(ctx, bob, meta)
	assert.ErrorIs(t, err, ErrSessionConflict)
	assert.Nil(t, res)
	assert.Len(t, repo.docs, 1)
}

func TestTranscriptSaveDuplicateWithoutStoredHash(t *testing.T) {
	repo := newFakeTranscripts()
	oid := primitive.NewObjectID()
	repo.bySession["session_old"] = models.Document{models.FieldID: oid}
	svc := NewTranscriptService(repo, Deps{})

	res, err := svc.Save(context.Background(), models.Document{"sessionId": "session_old", "messages": []any{"x"}}, meta)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, oid.Hex(), res.InsertedID)
}

func TestTranscriptListFarPageIsEmpty(t *testing.T) {
	repo := newFakeTranscripts()
	svc := NewTranscriptService(repo, Deps{})
	ctx := context.Background()
	_, err := svc.Save(ctx, models.Document{"sessionId": "session_1"}, meta)
	require.NoError(t, err)

	res, err := svc.List(ctx, math.MaxInt, 100)
	require.NoError(t, err)
	assert.Empty(t, res.Transcripts)
	assert.Equal(t, int64(1), res.Pagination.TotalCount)
}

func TestTranscriptSaveFailureTripsBreaker(t *testing.T) {
	repo := newFakeTranscripts()
	repo.insertErr = errors.New("server selection timeout")

	cfg := resilience.DefaultCircuitBreakerConfig("mongo-writes")
	cfg.FailureThreshold = 2
	cfg.IsFailure = IsStoreFailure
	breaker := resilience.NewCircuitBreaker(cfg, nil)

	svc := NewTranscriptService(repo, Deps{Breaker: breaker})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Save(ctx, models.Document{"sessionId": fmt.Sprintf("s%d", i)}, meta)
		require.Error(t, err)
		assert.NotErrorIs(t, err, resilience.ErrCircuitOpen)
	}

	_, err := svc.Save(ctx, models.Document{"sessionId": "s3"}, meta)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestDuplicatesDoNotTripBreaker(t *testing.T) {
	repo := newFakeTranscripts()
	cfg := resilience.DefaultCircuitBreakerConfig("mongo-writes")
	cfg.FailureThreshold = 1
	cfg.IsFailure = IsStoreFailure
	breaker := resilience.NewCircuitBreaker(cfg, nil)
	svc := NewTranscriptService(repo, Deps{Breaker: breaker})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Save(ctx, models.Document{"sessionId": "same"}, meta)
		require.NoError(t, err)
	}
	assert.Equal(t, resilience.StateClosed, breaker.GetState())
}

func TestTranscriptListPagination(t *testing.T) {
	repo := newFakeTranscripts()
	svc := NewTranscriptService(repo, Deps{})
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := svc.Save(ctx, models.Document{"sessionId": fmt.Sprintf("session_%02d", i)}, meta)
		require.NoError(t, err)
	}

	res, err := svc.List(ctx, 2, 10)
	require.NoError(t, err)
	assert.Len(t, res.Transcripts, 10)
	assert.Equal(t, Pagination{Page: 2, Limit: 10, TotalCount: 25, TotalPages: 3}, res.Pagination)
	assert.Equal(t, "session_14", res.Transcripts[0].String("sessionId"))

	last, err := svc.List(ctx, 3, 10)
	require.NoError(t, err)
	assert.Len(t, last.Transcripts, 5)

	beyond, err := svc.List(ctx, 9, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond.Transcripts)
}

func TestTranscriptGetUsesCache(t *testing.T) {
	repo := newFakeTranscripts()
	store := cache.NewCache(time.Minute, 100)
	defer store.Close()

	svc := NewTranscriptService(repo, Deps{Cache: store})
	ctx := context.Background()

	saved, err := svc.Save(ctx, models.Document{"sessionId": "session_1", "rating": int32(4)}, meta)
	require.NoError(t, err)

	first, err := svc.Get(ctx, saved.InsertedID)
	require.NoError(t, err)
	second, err := svc.Get(ctx, saved.InsertedID)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.getCalls)
	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, "session_1", second.String("sessionId"))
	assert.Equal(t, 1, store.Count())
}

func TestTranscriptGetErrors(t *testing.T) {
	svc := NewTranscriptService(newFakeTranscripts(), Deps{})
	ctx := context.Background()

	_, err := svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrInvalidID)

	_, err = svc.Get(ctx, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFeedbackSave(t *testing.T) {
	repo := &fakeFeedback{}
	svc := NewFeedbackService(repo, Deps{})

	res, err := svc.Save(context.Background(), models.Document{
		"feedbackId": "feedback_1",
		"sessionId":  "session_1",
		"rating":     int32(5),
	}, meta)
	require.NoError(t, err)
	assert.Equal(t, "feedback_1", res.FeedbackID)
	assert.NotEmpty(t, res.InsertedID)
	assert.Equal(t, "test-agent", repo.docs[0][models.FieldUserAgent])

	repo.err = errors.New("write concern error")
	_, err = svc.Save(context.Background(), models.Document{"feedbackId": "feedback_2"}, meta)
	assert.Error(t, err)
}
