package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"dpchat/backend/internal/models"
	"dpchat/backend/internal/repository"
	"dpchat/backend/pkg/cache"
	"dpchat/backend/pkg/logger"
	"dpchat/backend/pkg/observability"
	"dpchat/backend/pkg/resilience"

	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Pagination defaults for the list route
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ErrSessionConflict means a different envelope is already stored under the same sessionId
var ErrSessionConflict = errors.New("session already stored with different content")

// Deps carries the optional collaborators shared by the services
type Deps struct {
	Cache    cache.Store
	CacheTTL time.Duration
	Breaker  *resilience.CircuitBreaker
	Metrics  *observability.Metrics
	Logger   *logger.Logger
}

func (d Deps) log() *logger.Logger {
	if d.Logger == nil {
		return logger.GetGlobal()
	}
	return d.Logger
}

// SaveResult acknowledges a stored envelope
type SaveResult struct {
	InsertedID string
	SessionID  string
	FeedbackID string
	Duplicate  bool
}

// Pagination describes one page of the transcript list
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
}

// Skip is the number of documents before this page. Pages too far out to
// count saturate at math.MaxInt64 and read as empty.
func (p Pagination) Skip() int64 {
	before := int64(p.Page - 1)
	if before > math.MaxInt64/int64(p.Limit) {
		return math.MaxInt64
	}
	return before * int64(p.Limit)
}

// NewPagination applies the defaults: page and limit below 1 fall back to
// 1 and 10, and limit is capped at 100
func NewPagination(page, limit int) Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Pagination{Page: page, Limit: limit}
}

// WithTotal fills in the counts for total stored documents
func (p Pagination) WithTotal(total int64) Pagination {
	p.TotalCount = total
	p.TotalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return p
}

// ListResult is one page of transcripts, newest first
type ListResult struct {
	Transcripts []models.Document
	Pagination  Pagination
}

// TranscriptService stores transcripts and serves the administrative reads
type TranscriptService struct {
	repo   repository.TranscriptRepository
	deps   Deps
	log    *logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewTranscriptService(repo repository.TranscriptRepository, deps Deps) *TranscriptService {
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = 5 * time.Minute
	}
	return &TranscriptService{
		repo:   repo,
		deps:   deps,
		log:    deps.log(),
		tracer: otel.Tracer(observability.TracerName),
		now:    time.Now,
	}
}

// writeThroughBreaker runs a store write inside the circuit breaker, when one is configured
func writeThroughBreaker(ctx context.Context, cb *resilience.CircuitBreaker, fn func(context.Context) error) error {
	if cb == nil {
		return fn(ctx)
	}
	return cb.Execute(ctx, fn)
}

// IsStoreFailure reports whether err should count against the write breaker.
// Duplicates are answered normally and do not indicate an unhealthy store.
func IsStoreFailure(err error) bool {
	return !errors.Is(err, repository.ErrDuplicate)
}

// Save stores the envelope with request metadata. Resubmitting the envelope
// of a session that is already stored is not written again; the existing
// document's id is returned with Duplicate set. A different envelope under
// the same sessionId fails with ErrSessionConflict.
func (s *TranscriptService) Save(ctx context.Context, doc models.Document, meta models.RequestMeta) (*SaveResult, error) {
	ctx, span := s.tracer.Start(ctx, "TranscriptService.Save")
	defer span.End()

	sessionID := doc.String(models.FieldSessionID)
	span.SetAttributes(attribute.String("session.id", sessionID))
	log := s.log.WithContext(ctx).WithSessionID(sessionID)

	hash := doc.ContentHash()
	doc.Stamp(meta, s.now())
	if hash != "" {
		doc[models.FieldContentSum] = hash
	}

	var insertedID string
	start := time.Now()
	err := writeThroughBreaker(ctx, s.deps.Breaker, func(ctx context.Context) error {
		var err error
		insertedID, err = s.repo.Insert(ctx, doc)
		return err
	})
	s.deps.Metrics.ObserveStore(ctx, "insert_transcript", start)

	if errors.Is(err, repository.ErrDuplicate) && sessionID != "" {
		existing, findErr := s.repo.FindBySessionID(ctx, sessionID)
		switch {
		case findErr != nil:
			err = fmt.Errorf("look up duplicate session: %w", findErr)
		case contentDiffers(existing, hash):
			s.deps.Metrics.TranscriptSaved(ctx, observability.OutcomeRejected)
			log.Warn("Different transcript already stored for session", "inserted_id", existing.ID())
			return nil, fmt.Errorf("%w: %s", ErrSessionConflict, sessionID)
		default:
			s.deps.Metrics.TranscriptSaved(ctx, observability.OutcomeDuplicate)
			log.Info("Transcript already stored for session", "inserted_id", existing.ID())
			return &SaveResult{InsertedID: existing.ID(), SessionID: sessionID, Duplicate: true}, nil
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		s.deps.Metrics.TranscriptSaved(ctx, observability.OutcomeFailed)
		log.LogError(err, "Failed to save transcript")
		return nil, err
	}

	s.deps.Metrics.TranscriptSaved(ctx, observability.OutcomeCreated)
	log.Info("Transcript saved", "inserted_id", insertedID)
	return &SaveResult{InsertedID: insertedID, SessionID: sessionID}, nil
}

// contentDiffers is false when either side has no hash; documents stored
// without one are treated as the same envelope
func contentDiffers(existing models.Document, hash string) bool {
	stored := existing.String(models.FieldContentSum)
	return stored != "" && hash != "" && stored != hash
}

// List returns one page of transcripts, newest first
func (s *TranscriptService) List(ctx context.Context, page, limit int) (*ListResult, error) {
	ctx, span := s.tracer.Start(ctx, "TranscriptService.List")
	defer span.End()

	p := NewPagination(page, limit)
	span.SetAttributes(attribute.Int("page", p.Page), attribute.Int("limit", p.Limit))

	start := time.Now()
	docs, err := s.repo.List(ctx, p.Skip(), int64(p.Limit))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("count transcripts: %w", err)
	}
	s.deps.Metrics.ObserveStore(ctx, "list_transcripts", start)

	return &ListResult{Transcripts: docs, Pagination: p.WithTotal(total)}, nil
}

func cacheKey(id string) string {
	return "transcript:" + id
}

// Get fetches one transcript. Stored transcripts never change, so reads are
// served from the cache when possible; cache errors only cost a database read.
func (s *TranscriptService) Get(ctx context.Context, id string) (models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "TranscriptService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("transcript.id", id))

	log := s.log.WithContext(ctx)

	if s.deps.Cache != nil {
		raw, ok, err := s.deps.Cache.Get(ctx, cacheKey(id))
		if err != nil {
			log.Warn("Transcript cache read failed", "id", id, "error", err.Error())
		} else if ok {
			var doc models.Document
			if err := bson.Unmarshal(raw, &doc); err == nil {
				s.deps.Metrics.CacheLookup(ctx, true)
				return doc, nil
			}
			log.Warn("Discarding undecodable cache entry", "id", id)
		}
		s.deps.Metrics.CacheLookup(ctx, false)
	}

	start := time.Now()
	doc, err := s.repo.GetByID(ctx, id)
	s.deps.Metrics.ObserveStore(ctx, "get_transcript", start)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrInvalidID) {
			span.RecordError(err)
		}
		return nil, err
	}

	if s.deps.Cache != nil {
		if raw, err := bson.Marshal(doc); err == nil {
			if err := s.deps.Cache.Set(ctx, cacheKey(id), raw, s.deps.CacheTTL); err != nil {
				log.Warn("Transcript cache write failed", "id", id, "error", err.Error())
			}
		}
	}

	return doc, nil
}
