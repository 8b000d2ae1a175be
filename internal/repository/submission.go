package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"moderator/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	// ErrSubmissionNotFound is returned when no record exists for the given id.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrTerminalState is returned when a stage update targets a record that
	// already reached completed or error status.
	ErrTerminalState = errors.New("submission already in terminal state")
)

type SubmissionRepository interface {
	Create(sub *models.Submission) error
	GetByID(id string) (*models.Submission, error)
	MarkExtracting(id string) error
	MarkAnalyzing(id string) error
	SetExtractedText(id string, text string) error
	Complete(id string, signals *models.ToxicitySignals, cb *models.CyberbullyingResult, assessment string, class models.Classification) error
	MarkError(id string, message string) error
	Recent(limit int) ([]*models.SubmissionSummary, error)
}

type submissionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSubmissionRepository(db *sqlx.DB, logger *zap.Logger) SubmissionRepository {
	return &submissionRepository{db: db, logger: logger}
}

// submissionRow mirrors the submissions table; JSONB payloads come back as
// raw bytes and are decoded into the model explicitly.
type submissionRow struct {
	ID                   string         `db:"id"`
	SourceKind           string         `db:"source_kind"`
	RawReference         string         `db:"raw_reference"`
	FileName             sql.NullString `db:"file_name"`
	ExtractedText        sql.NullString `db:"extracted_text"`
	Status               string         `db:"status"`
	ToxicitySignals      []byte         `db:"toxicity_signals"`
	Cyberbullying        []byte         `db:"cyberbullying"`
	ContextualAssessment sql.NullString `db:"contextual_assessment"`
	Classification       sql.NullString `db:"classification"`
	ErrorMessage         sql.NullString `db:"error_message"`
	CreatedAt            time.Time      `db:"created_at"`
}

func (row *submissionRow) toModel() (*models.Submission, error) {
	sub := &models.Submission{
		ID:           row.ID,
		SourceKind:   models.SourceKind(row.SourceKind),
		RawReference: row.RawReference,
		Status:       models.Status(row.Status),
		CreatedAt:    row.CreatedAt,
	}
	if row.FileName.Valid {
		sub.FileName = row.FileName.String
	}
	if row.ExtractedText.Valid {
		text := row.ExtractedText.String
		sub.ExtractedText = &text
	}
	if len(row.ToxicitySignals) > 0 {
		signals := &models.ToxicitySignals{}
		if err := json.Unmarshal(row.ToxicitySignals, signals); err != nil {
			return nil, fmt.Errorf("failed to decode toxicity signals: %w", err)
		}
		sub.ToxicitySignals = signals
	}
	if len(row.Cyberbullying) > 0 {
		cb := &models.CyberbullyingResult{}
		if err := json.Unmarshal(row.Cyberbullying, cb); err != nil {
			return nil, fmt.Errorf("failed to decode cyberbullying result: %w", err)
		}
		sub.Cyberbullying = cb
	}
	if row.ContextualAssessment.Valid {
		assessment := row.ContextualAssessment.String
		sub.ContextualAssessment = &assessment
	}
	if row.Classification.Valid {
		class := models.Classification(row.Classification.String)
		sub.Classification = &class
	}
	if row.ErrorMessage.Valid {
		msg := row.ErrorMessage.String
		sub.ErrorMessage = &msg
	}
	return sub, nil
}

func (r *submissionRepository) Create(sub *models.Submission) error {
	query := `INSERT INTO submissions (id, source_kind, raw_reference, file_name, status)
	          VALUES ($1, $2, $3, NULLIF($4, ''), $5) RETURNING created_at`
	return r.db.QueryRowx(query, sub.ID, sub.SourceKind, sub.RawReference, sub.FileName, sub.Status).
		Scan(&sub.CreatedAt)
}

func (r *submissionRepository) GetByID(id string) (*models.Submission, error) {
	var row submissionRow
	query := `SELECT id, source_kind, raw_reference, file_name, extracted_text, status,
	                 toxicity_signals, cyberbullying, contextual_assessment, classification,
	                 error_message, created_at
	          FROM submissions WHERE id = $1`
	err := r.db.Get(&row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return row.toModel()
}

// guardedExec runs a stage-transition update and translates a zero row count
// into ErrTerminalState so no record ever leaves completed or error.
func (r *submissionRepository) guardedExec(query string, args ...interface{}) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTerminalState
	}
	return nil
}

func (r *submissionRepository) MarkExtracting(id string) error {
	query := `UPDATE submissions SET status = $1
	          WHERE id = $2 AND status NOT IN ('completed', 'error')`
	return r.guardedExec(query, models.StatusExtracting, id)
}

func (r *submissionRepository) MarkAnalyzing(id string) error {
	query := `UPDATE submissions SET status = $1
	          WHERE id = $2 AND status NOT IN ('completed', 'error')`
	return r.guardedExec(query, models.StatusAnalyzing, id)
}

func (r *submissionRepository) SetExtractedText(id string, text string) error {
	query := `UPDATE submissions SET extracted_text = $1, status = $2
	          WHERE id = $3 AND status NOT IN ('completed', 'error')`
	return r.guardedExec(query, text, models.StatusAnalyzing, id)
}

func (r *submissionRepository) Complete(id string, signals *models.ToxicitySignals, cb *models.CyberbullyingResult, assessment string, class models.Classification) error {
	// A nil signal set (lexical-only analysis) stays NULL in the record.
	var signalsJSON []byte
	if signals != nil {
		var err error
		signalsJSON, err = json.Marshal(signals)
		if err != nil {
			return fmt.Errorf("failed to encode toxicity signals: %w", err)
		}
	}
	cbJSON, err := json.Marshal(cb)
	if err != nil {
		return fmt.Errorf("failed to encode cyberbullying result: %w", err)
	}

	query := `UPDATE submissions
	          SET toxicity_signals = $1, cyberbullying = $2, contextual_assessment = $3,
	              classification = $4, status = $5
	          WHERE id = $6 AND status NOT IN ('completed', 'error')`
	return r.guardedExec(query, signalsJSON, cbJSON, assessment, class, models.StatusCompleted, id)
}

func (r *submissionRepository) MarkError(id string, message string) error {
	query := `UPDATE submissions SET status = $1, error_message = $2
	          WHERE id = $3 AND status NOT IN ('completed', 'error')`
	return r.guardedExec(query, models.StatusError, message, id)
}

func (r *submissionRepository) Recent(limit int) ([]*models.SubmissionSummary, error) {
	query := `SELECT id, source_kind, raw_reference, file_name, status, classification, created_at
	          FROM submissions
	          WHERE status = 'completed'
	          ORDER BY created_at DESC
	          LIMIT $1`

	rows, err := r.db.Queryx(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*models.SubmissionSummary
	for rows.Next() {
		var row submissionRow
		if err := rows.StructScan(&row); err != nil {
			r.logger.Error("Failed to scan submission summary", zap.Error(err))
			continue
		}

		summary := &models.SubmissionSummary{
			ID:         row.ID,
			SourceKind: models.SourceKind(row.SourceKind),
			CreatedAt:  row.CreatedAt,
		}
		if row.Classification.Valid {
			class := models.Classification(row.Classification.String)
			summary.Classification = &class
		}
		if summary.SourceKind == models.SourceFile {
			summary.FileName = row.FileName.String
		} else {
			summary.TextPreview = previewText(row.RawReference, 50)
		}
		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

func previewText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
