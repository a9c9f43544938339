package service

import (
	"context"
	"time"

	"dpchat/backend/internal/models"
	"dpchat/backend/internal/repository"
	"dpchat/backend/pkg/logger"
	"dpchat/backend/pkg/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type FeedbackService struct {
	repo   repository.FeedbackRepository
	deps   Deps
	log    *logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewFeedbackService(repo repository.FeedbackRepository, deps Deps) *FeedbackService {
	return &FeedbackService{
		repo:   repo,
		deps:   deps,
		log:    deps.log(),
		tracer: otel.Tracer(observability.TracerName),
		now:    time.Now,
	}
}

// Save stores a feedback envelope with request metadata
func (s *FeedbackService) Save(ctx context.Context, doc models.Document, meta models.RequestMeta) (*SaveResult, error) {
	ctx, span := s.tracer.Start(ctx, "FeedbackService.Save")
	defer span.End()

	feedbackID := doc.String(models.FieldFeedbackID)
	span.SetAttributes(attribute.String("feedback.id", feedbackID))

	doc.Stamp(meta, s.now())

	var insertedID string
	start := time.Now()
	err := writeThroughBreaker(ctx, s.deps.Breaker, func(ctx context.Context) error {
		var err error
		insertedID, err = s.repo.Insert(ctx, doc)
		return err
	})
	s.deps.Metrics.ObserveStore(ctx, "insert_feedback", start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		s.deps.Metrics.FeedbackSaved(ctx, observability.OutcomeFailed)
		s.log.WithContext(ctx).LogError(err, "Failed to save feedback", "feedback_id", feedbackID)
		return nil, err
	}

	s.deps.Metrics.FeedbackSaved(ctx, observability.OutcomeCreated)
	s.log.WithContext(ctx).Info("Feedback saved",
		"feedback_id", feedbackID,
		"inserted_id", insertedID,
		"rating", doc["rating"],
	)
	return &SaveResult{InsertedID: insertedID, FeedbackID: feedbackID}, nil
}
