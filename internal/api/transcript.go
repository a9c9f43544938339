package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"dpchat/backend/internal/models"
	"dpchat/backend/internal/repository"
	"dpchat/backend/internal/service"
	apperrors "dpchat/backend/pkg/errors"
	"dpchat/backend/pkg/resilience"

	"github.com/gin-gonic/gin"
)

// DefaultMaxBodySize bounds a single envelope
const DefaultMaxBodySize int64 = 1 << 20

type TranscriptStore interface {
	Save(ctx context.Context, doc models.Document, meta models.RequestMeta) (*service.SaveResult, error)
	List(ctx context.Context, page, limit int) (*service.ListResult, error)
	Get(ctx context.Context, id string) (models.Document, error)
}

type FeedbackStore interface {
	Save(ctx context.Context, doc models.Document, meta models.RequestMeta) (*service.SaveResult, error)
}

type TranscriptHandler struct {
	transcripts TranscriptStore
	feedback    FeedbackStore
	maxBody     int64
}

func NewTranscriptHandler(transcripts TranscriptStore, feedback FeedbackStore, maxBody int64) *TranscriptHandler {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}
	return &TranscriptHandler{transcripts: transcripts, feedback: feedback, maxBody: maxBody}
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func (h *TranscriptHandler) readEnvelope(c *gin.Context) (models.Document, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(apperrors.NewError(http.StatusRequestEntityTooLarge, apperrors.CodeInvalidJSON, "Request body too large").Wrap(err))
			return nil, false
		}
		_ = c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidJSON, "Failed to read request body").Wrap(err))
		return nil, false
	}

	doc, err := models.ParseEnvelope(body)
	if err != nil {
		_ = c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidJSON, "Invalid JSON").Wrap(err))
		return nil, false
	}
	return doc, true
}

// storeError maps a failed write to its response
func storeError(err error, message string) *apperrors.AppError {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return apperrors.NewServiceUnavailableError(apperrors.CodeStoreDown, message).Wrap(err)
	}
	return apperrors.NewInternalServerError(apperrors.CodeSaveFailed, message).Wrap(err)
}

// SaveTranscript handles POST /api/transcript/save
func (h *TranscriptHandler) SaveTranscript(c *gin.Context) {
	doc, ok := h.readEnvelope(c)
	if !ok {
		return
	}

	res, err := h.transcripts.Save(c.Request.Context(), doc, requestMeta(c))
	if errors.Is(err, service.ErrSessionConflict) {
		_ = c.Error(apperrors.NewConflictError(apperrors.CodeSessionConflict, "A different transcript is already stored for this session").
			WithDetails(gin.H{"sessionId": doc.String(models.FieldSessionID)}))
		return
	}
	if err != nil {
		_ = c.Error(storeError(err, "Failed to save transcript"))
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"success":    true,
		"insertedId": res.InsertedID,
		"sessionId":  res.SessionID,
		"duplicate":  res.Duplicate,
		"message":    "Transcript saved successfully",
	})
}

// SaveFeedback handles POST /api/transcript/feedback
func (h *TranscriptHandler) SaveFeedback(c *gin.Context) {
	doc, ok := h.readEnvelope(c)
	if !ok {
		return
	}

	res, err := h.feedback.Save(c.Request.Context(), doc, requestMeta(c))
	if err != nil {
		_ = c.Error(storeError(err, "Failed to save feedback"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"insertedId": res.InsertedID,
		"feedbackId": res.FeedbackID,
		"message":    "Feedback saved successfully",
	})
}

// queryInt returns 0 for missing or malformed values, which the service
// replaces with its defaults
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

// ListTranscripts handles GET /api/transcript/list
func (h *TranscriptHandler) ListTranscripts(c *gin.Context) {
	res, err := h.transcripts.List(c.Request.Context(), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		_ = c.Error(apperrors.NewInternalServerError(apperrors.CodeFetchFailed, "Failed to retrieve transcripts").Wrap(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"transcripts": res.Transcripts,
		"pagination":  res.Pagination,
	})
}

// GetTranscript handles GET /api/transcript/:id
func (h *TranscriptHandler) GetTranscript(c *gin.Context) {
	doc, err := h.transcripts.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, repository.ErrInvalidID):
		_ = c.Error(apperrors.NewBadRequestError(apperrors.CodeInvalidID, "Invalid transcript id").Wrap(err))
		return
	case errors.Is(err, repository.ErrNotFound):
		_ = c.Error(apperrors.NewNotFoundError(apperrors.CodeNotFound, "Transcript not found"))
		return
	case err != nil:
		_ = c.Error(apperrors.NewInternalServerError(apperrors.CodeFetchFailed, "Failed to retrieve transcript").Wrap(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"transcript": doc,
	})
}
