package service

import (
	"errors"
	"fmt"
	"strings"

	"moderator/internal/models"
	"moderator/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrEmptyText is returned when a text submission has no content.
	ErrEmptyText = errors.New("no text provided")
	// ErrQueueFull is returned when the pipeline queue rejects a submission.
	ErrQueueFull = errors.New("analysis queue is full")
)

// Enqueuer hands a submission id to the background pipeline.
type Enqueuer interface {
	Submit(submissionID string) bool
}

// BlobSaver persists an uploaded payload and returns an opaque reference.
type BlobSaver interface {
	Save(data []byte, contentType, fileName string) (string, error)
}

// StatusResponse is the polling answer for one submission. Result is
// populated only for completed submissions.
type StatusResponse struct {
	Status models.Status          `json:"status"`
	Result *models.AnalysisResult `json:"result,omitempty"`
	Error  string                 `json:"error_message,omitempty"`
}

// SubmissionService is the intake and status surface called by the HTTP
// handlers. Submissions return immediately; the pipeline runs behind the
// worker pool.
type SubmissionService struct {
	repo   repository.SubmissionRepository
	blobs  BlobSaver
	queue  Enqueuer
	logger *zap.Logger
}

func NewSubmissionService(repo repository.SubmissionRepository, blobs BlobSaver, queue Enqueuer, logger *zap.Logger) *SubmissionService {
	return &SubmissionService{repo: repo, blobs: blobs, queue: queue, logger: logger}
}

// SubmitText creates a pending record for raw text and schedules analysis.
func (s *SubmissionService) SubmitText(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	sub := &models.Submission{
		ID:           uuid.New().String(),
		SourceKind:   models.SourceText,
		RawReference: text,
		Status:       models.StatusPending,
	}
	if err := s.repo.Create(sub); err != nil {
		return "", fmt.Errorf("failed to create submission: %w", err)
	}

	return sub.ID, s.enqueue(sub.ID)
}

// SubmitFile stores the payload, creates a pending record referencing it,
// and schedules analysis.
func (s *SubmissionService) SubmitFile(fileName, contentType string, data []byte) (string, error) {
	ref, err := s.blobs.Save(data, contentType, fileName)
	if err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}

	sub := &models.Submission{
		ID:           uuid.New().String(),
		SourceKind:   models.SourceFile,
		RawReference: ref,
		FileName:     fileName,
		Status:       models.StatusPending,
	}
	if err := s.repo.Create(sub); err != nil {
		return "", fmt.Errorf("failed to create submission: %w", err)
	}

	s.logger.Info("File submission created",
		zap.String("submission_id", sub.ID),
		zap.String("file_name", fileName),
		zap.String("content_type", contentType))

	return sub.ID, s.enqueue(sub.ID)
}

func (s *SubmissionService) enqueue(id string) error {
	if s.queue.Submit(id) {
		return nil
	}
	// The record must not sit pending forever if it never reaches a worker.
	if err := s.repo.MarkError(id, "analysis queue is full"); err != nil {
		s.logger.Error("Failed to mark rejected submission", zap.String("submission_id", id), zap.Error(err))
	}
	return ErrQueueFull
}

// Status reads the current state of a submission. Unknown ids surface as
// repository.ErrSubmissionNotFound.
func (s *SubmissionService) Status(id string) (*StatusResponse, error) {
	sub, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	resp := &StatusResponse{Status: sub.Status}
	if sub.ErrorMessage != nil {
		resp.Error = *sub.ErrorMessage
	}
	if sub.Status == models.StatusCompleted {
		result := &models.AnalysisResult{
			ToxicitySignals: sub.ToxicitySignals,
			OriginalText:    sub.Text(),
		}
		if sub.Cyberbullying != nil {
			result.CyberbullyingScore = sub.Cyberbullying.Score
			result.CyberbullyingFlags = sub.Cyberbullying.Categories
		}
		if sub.ContextualAssessment != nil {
			result.ContextualAssessment = *sub.ContextualAssessment
		}
		if sub.Classification != nil {
			result.Classification = *sub.Classification
		}
		resp.Result = result
	}
	return resp, nil
}

// Recent lists the latest completed submissions for the dashboard feed.
func (s *SubmissionService) Recent(limit int) ([]*models.SubmissionSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.repo.Recent(limit)
}
