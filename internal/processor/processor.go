// Package processor owns the submission lifecycle: it drives a record from
// pending through extraction and analysis to a terminal status. Errors from
// scoring sub-calls never propagate past their stage; everything externally
// visible goes through the submission record.
package processor

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"moderator/internal/classifier"
	"moderator/internal/harassment"
	"moderator/internal/models"
	"moderator/internal/repository"
)

// ToxicityScorer scores a text for the named toxicity attributes. An error
// is a hard failure (context cancellation); service outages degrade inside
// the scorer instead.
type ToxicityScorer interface {
	Analyze(ctx context.Context, text string) (*models.ToxicitySignals, error)
}

// ContextualAnalyzer returns a qualitative assessment, degrading to static
// messages internally.
type ContextualAnalyzer interface {
	Analyze(ctx context.Context, text string) string
}

// BlobLoader retrieves raw payload bytes plus declared content type.
type BlobLoader interface {
	Load(ref string) ([]byte, string, error)
}

// TextExtractor converts a payload into UTF-8 text.
type TextExtractor interface {
	Extract(ctx context.Context, contentType string, data []byte) (string, error)
}

// Notifier is told about submissions classified as harmful. May be nil.
type Notifier interface {
	SubmissionFlagged(sub *models.Submission)
}

// Processor runs the analysis pipeline for one submission at a time.
type Processor struct {
	repo       repository.SubmissionRepository
	blobs      BlobLoader
	extractor  TextExtractor
	toxicity   ToxicityScorer
	contextual ContextualAnalyzer
	detector   *harassment.Detector
	notifier   Notifier
	logger     *zap.Logger
}

func New(
	repo repository.SubmissionRepository,
	blobs BlobLoader,
	extractor TextExtractor,
	toxicity ToxicityScorer,
	contextual ContextualAnalyzer,
	detector *harassment.Detector,
	notifier Notifier,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		repo:       repo,
		blobs:      blobs,
		extractor:  extractor,
		toxicity:   toxicity,
		contextual: contextual,
		detector:   detector,
		notifier:   notifier,
		logger:     logger,
	}
}

// Process executes the full pipeline for a submission id. It never returns
// an error: every outcome is persisted as a terminal status on the record.
func (p *Processor) Process(ctx context.Context, id string) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Pipeline panic recovered", zap.String("submission_id", id), zap.Any("panic", r))
			p.markError(id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	sub, err := p.repo.GetByID(id)
	if err != nil {
		p.logger.Error("Failed to load submission for processing", zap.String("submission_id", id), zap.Error(err))
		return
	}
	if sub.Status.IsTerminal() {
		p.logger.Warn("Submission already terminal, skipping", zap.String("submission_id", id), zap.String("status", string(sub.Status)))
		return
	}

	text, ok := p.runExtraction(ctx, sub)
	if !ok {
		return
	}

	p.runAnalysis(ctx, sub, text)
}

// runExtraction resolves the analyzable text for the submission. File
// submissions pass through the extracting stage; text submissions move to
// analyzing directly. Returns false when the submission terminated.
func (p *Processor) runExtraction(ctx context.Context, sub *models.Submission) (string, bool) {
	if sub.SourceKind == models.SourceText {
		if err := p.repo.MarkAnalyzing(sub.ID); err != nil {
			p.logger.Error("Failed to mark submission analyzing", zap.String("submission_id", sub.ID), zap.Error(err))
			return "", false
		}
		return sub.RawReference, true
	}

	if err := p.repo.MarkExtracting(sub.ID); err != nil {
		p.logger.Error("Failed to mark submission extracting", zap.String("submission_id", sub.ID), zap.Error(err))
		return "", false
	}

	data, contentType, err := p.blobs.Load(sub.RawReference)
	if err != nil {
		p.logger.Error("Failed to load submission payload", zap.String("submission_id", sub.ID), zap.Error(err))
		p.markError(sub.ID, fmt.Sprintf("failed to retrieve file: %v", err))
		return "", false
	}

	text, err := p.extractor.Extract(ctx, contentType, data)
	if err != nil {
		p.logger.Error("Text extraction failed",
			zap.String("submission_id", sub.ID),
			zap.String("content_type", contentType),
			zap.Error(err))
		p.markError(sub.ID, err.Error())
		return "", false
	}

	if err := p.repo.SetExtractedText(sub.ID, text); err != nil {
		p.logger.Error("Failed to persist extracted text", zap.String("submission_id", sub.ID), zap.Error(err))
		return "", false
	}

	p.logger.Info("Text extracted", zap.String("submission_id", sub.ID), zap.Int("length", len(text)))
	return text, true
}

// runAnalysis executes the scoring stage. Toxicity scoring and contextual
// analysis run concurrently; the harassment heuristic fuses after the
// toxicity signals resolve.
func (p *Processor) runAnalysis(ctx context.Context, sub *models.Submission, text string) {
	var (
		signals    *models.ToxicitySignals
		scoreErr   error
		assessment string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		signals, scoreErr = p.toxicity.Analyze(gctx, text)
		return nil
	})
	g.Go(func() error {
		assessment = p.contextual.Analyze(gctx, text)
		return nil
	})
	_ = g.Wait()

	if scoreErr != nil {
		// Hard scorer failure: the lexical fallback carries the harassment
		// signal on its own.
		p.logger.Warn("Toxicity scoring failed hard, using lexical heuristic only",
			zap.String("submission_id", sub.ID),
			zap.Error(scoreErr))
		signals = nil
	} else if signals.Degraded {
		p.logger.Warn("Toxicity signals are degraded placeholders", zap.String("submission_id", sub.ID))
	}

	cb := p.detector.Detect(text, signals)
	class := classifier.Classify(signals, cb.Score)

	if err := p.repo.Complete(sub.ID, signals, cb, assessment, class); err != nil {
		p.logger.Error("Failed to persist analysis results", zap.String("submission_id", sub.ID), zap.Error(err))
		p.markError(sub.ID, fmt.Sprintf("failed to store analysis results: %v", err))
		return
	}

	p.logger.Info("Submission analysis completed",
		zap.String("submission_id", sub.ID),
		zap.String("classification", string(class)),
		zap.Float64("cyberbullying_score", cb.Score))

	if class == models.ClassificationHarmful && p.notifier != nil {
		sub.Classification = &class
		sub.Cyberbullying = cb
		sub.ToxicitySignals = signals
		p.notifier.SubmissionFlagged(sub)
	}
}

func (p *Processor) markError(id, message string) {
	if err := p.repo.MarkError(id, message); err != nil {
		p.logger.Error("Failed to mark submission as errored", zap.String("submission_id", id), zap.Error(err))
	}
}
