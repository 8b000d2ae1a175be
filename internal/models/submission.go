package models

import "time"

// SourceKind identifies how a submission entered the system.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceText SourceKind = "text"
)

// Status values for the submission lifecycle. Transitions are one-directional:
// pending -> [extracting ->] analyzing -> completed | error.
type Status string

const (
	StatusPending    Status = "pending"
	StatusExtracting Status = "extracting"
	StatusAnalyzing  Status = "analyzing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Classification is the final ordinal safety class of a submission.
type Classification string

const (
	ClassificationSafe               Classification = "Safe"
	ClassificationPotentiallyHarmful Classification = "Potentially Harmful"
	ClassificationHarmful            Classification = "Harmful"
)

// ToxicitySignals holds the per-attribute scores returned by the toxicity
// scoring service, each in [0,1]. Degraded marks a substitute signal set
// produced after a scoring failure; such scores are placeholders, not
// production-grade measurements.
type ToxicitySignals struct {
	Toxicity         float64 `json:"toxicity"`
	SevereToxicity   float64 `json:"severe_toxicity"`
	Insult           float64 `json:"insult"`
	Threat           float64 `json:"threat"`
	IdentityAttack   float64 `json:"identity_attack"`
	Profanity        float64 `json:"profanity"`
	SexuallyExplicit float64 `json:"sexually_explicit"`
	Flirtation       float64 `json:"flirtation"`
	Degraded         bool    `json:"degraded"`
}

// CyberbullyingResult is the harassment heuristic output: a composite score
// in [0,1] plus per-category flags.
type CyberbullyingResult struct {
	Score      float64         `json:"score"`
	Categories map[string]bool `json:"categories"`
}

// Submission represents one user-provided content item undergoing analysis.
// The record is created by intake with status pending and owned by the
// pipeline processor afterwards.
type Submission struct {
	ID                   string               `db:"id" json:"id"`
	SourceKind           SourceKind           `db:"source_kind" json:"source_kind"`
	RawReference         string               `db:"raw_reference" json:"-"`
	FileName             string               `db:"file_name" json:"file_name,omitempty"`
	ExtractedText        *string              `db:"extracted_text" json:"-"`
	Status               Status               `db:"status" json:"status"`
	ToxicitySignals      *ToxicitySignals     `json:"toxicity_signals,omitempty"`
	Cyberbullying        *CyberbullyingResult `json:"cyberbullying,omitempty"`
	ContextualAssessment *string              `db:"contextual_assessment" json:"contextual_assessment,omitempty"`
	Classification       *Classification      `db:"classification" json:"classification,omitempty"`
	ErrorMessage         *string              `db:"error_message" json:"error_message,omitempty"`
	CreatedAt            time.Time            `db:"created_at" json:"created_at"`
}

// Text returns the analyzable text of the submission: the raw text for
// direct submissions, the extracted text for file submissions.
func (s *Submission) Text() string {
	if s.SourceKind == SourceText {
		return s.RawReference
	}
	if s.ExtractedText != nil {
		return *s.ExtractedText
	}
	return ""
}

// AnalysisResult is the payload exposed to callers once a submission
// reaches completed status.
type AnalysisResult struct {
	ToxicitySignals      *ToxicitySignals `json:"toxicity_signals"`
	CyberbullyingScore   float64          `json:"cyberbullying_score"`
	CyberbullyingFlags   map[string]bool  `json:"cyberbullying_categories"`
	ContextualAssessment string           `json:"contextual_assessment"`
	Classification       Classification   `json:"classification"`
	OriginalText         string           `json:"original_text"`
}

// SubmissionSummary is the compact listing shape used by the recent
// submissions feed.
type SubmissionSummary struct {
	ID             string          `json:"id"`
	SourceKind     SourceKind      `json:"type"`
	CreatedAt      time.Time       `json:"created_at"`
	Classification *Classification `json:"classification,omitempty"`
	FileName       string          `json:"file_name,omitempty"`
	TextPreview    string          `json:"text_preview,omitempty"`
}
