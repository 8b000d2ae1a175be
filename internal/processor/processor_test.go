package processor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"moderator/internal/harassment"
	"moderator/internal/models"
	"moderator/internal/repository"
)

// fakeRepo is an in-memory SubmissionRepository that enforces the same
// terminal-state guard as the SQL implementation.
type fakeRepo struct {
	subs map[string]*models.Submission

	transitions []string
}

func newFakeRepo(subs ...*models.Submission) *fakeRepo {
	r := &fakeRepo{subs: make(map[string]*models.Submission)}
	for _, s := range subs {
		r.subs[s.ID] = s
	}
	return r
}

func (r *fakeRepo) Create(sub *models.Submission) error {
	r.subs[sub.ID] = sub
	return nil
}

func (r *fakeRepo) GetByID(id string) (*models.Submission, error) {
	sub, ok := r.subs[id]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeRepo) guard(id string) (*models.Submission, error) {
	sub, ok := r.subs[id]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	if sub.Status.IsTerminal() {
		return nil, repository.ErrTerminalState
	}
	return sub, nil
}

func (r *fakeRepo) MarkExtracting(id string) error {
	sub, err := r.guard(id)
	if err != nil {
		return err
	}
	sub.Status = models.StatusExtracting
	r.transitions = append(r.transitions, "extracting")
	return nil
}

func (r *fakeRepo) MarkAnalyzing(id string) error {
	sub, err := r.guard(id)
	if err != nil {
		return err
	}
	sub.Status = models.StatusAnalyzing
	r.transitions = append(r.transitions, "analyzing")
	return nil
}

func (r *fakeRepo) SetExtractedText(id string, text string) error {
	sub, err := r.guard(id)
	if err != nil {
		return err
	}
	sub.ExtractedText = &text
	sub.Status = models.StatusAnalyzing
	r.transitions = append(r.transitions, "analyzing")
	return nil
}

func (r *fakeRepo) Complete(id string, signals *models.ToxicitySignals, cb *models.CyberbullyingResult, assessment string, class models.Classification) error {
	sub, err := r.guard(id)
	if err != nil {
		return err
	}
	sub.Status = models.StatusCompleted
	sub.ToxicitySignals = signals
	sub.Cyberbullying = cb
	sub.ContextualAssessment = &assessment
	sub.Classification = &class
	r.transitions = append(r.transitions, "completed")
	return nil
}

func (r *fakeRepo) MarkError(id string, message string) error {
	sub, err := r.guard(id)
	if err != nil {
		return err
	}
	sub.Status = models.StatusError
	sub.ErrorMessage = &message
	r.transitions = append(r.transitions, "error")
	return nil
}

func (r *fakeRepo) Recent(limit int) ([]*models.SubmissionSummary, error) {
	return nil, nil
}

type fakeScorer struct {
	signals *models.ToxicitySignals
	err     error
	calls   int
}

func (f *fakeScorer) Analyze(_ context.Context, _ string) (*models.ToxicitySignals, error) {
	f.calls++
	return f.signals, f.err
}

type fakeContextual struct {
	assessment string
	calls      int
}

func (f *fakeContextual) Analyze(_ context.Context, _ string) string {
	f.calls++
	return f.assessment
}

type fakeBlobs struct {
	data        []byte
	contentType string
	err         error
}

func (f *fakeBlobs) Load(_ string) ([]byte, string, error) {
	return f.data, f.contentType, f.err
}

type fakeExtractor struct {
	text  string
	err   error
	panic bool
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, _ []byte) (string, error) {
	if f.panic {
		panic("extractor blew up")
	}
	return f.text, f.err
}

type fakeNotifier struct {
	flagged []*models.Submission
}

func (f *fakeNotifier) SubmissionFlagged(sub *models.Submission) {
	f.flagged = append(f.flagged, sub)
}

func textSubmission(id, text string) *models.Submission {
	return &models.Submission{
		ID:           id,
		SourceKind:   models.SourceText,
		RawReference: text,
		Status:       models.StatusPending,
	}
}

func fileSubmission(id, blobRef, fileName string) *models.Submission {
	return &models.Submission{
		ID:           id,
		SourceKind:   models.SourceFile,
		RawReference: blobRef,
		FileName:     fileName,
		Status:       models.StatusPending,
	}
}

func newProcessor(repo repository.SubmissionRepository, blobs BlobLoader, ext TextExtractor, scorer ToxicityScorer, ctxl ContextualAnalyzer, notifier Notifier) *Processor {
	return New(repo, blobs, ext, scorer, ctxl, harassment.NewDetector(), notifier, zap.NewNop())
}

// TestProcessTextSubmission drives a direct text item end to end and checks
// the stored analysis.
func TestProcessTextSubmission(t *testing.T) {
	repo := newFakeRepo(textSubmission("sub-1", "have a great day"))
	scorer := &fakeScorer{signals: &models.ToxicitySignals{Toxicity: 0.1}}
	ctxl := &fakeContextual{assessment: "Benign everyday message."}

	p := newProcessor(repo, nil, nil, scorer, ctxl, nil)
	p.Process(context.Background(), "sub-1")

	sub := repo.subs["sub-1"]
	if sub.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed", sub.Status)
	}
	if got := strings.Join(repo.transitions, ","); got != "analyzing,completed" {
		t.Fatalf("transitions = %q", got)
	}
	if sub.Classification == nil || *sub.Classification != models.ClassificationSafe {
		t.Fatalf("classification = %v", sub.Classification)
	}
	if sub.ToxicitySignals == nil || sub.ToxicitySignals.Toxicity != 0.1 {
		t.Fatalf("stored signals = %+v", sub.ToxicitySignals)
	}
	if sub.Cyberbullying == nil {
		t.Fatal("cyberbullying result not stored")
	}
	if sub.ContextualAssessment == nil || *sub.ContextualAssessment != "Benign everyday message." {
		t.Fatalf("assessment = %v", sub.ContextualAssessment)
	}
	if scorer.calls != 1 || ctxl.calls != 1 {
		t.Fatalf("calls: scorer=%d contextual=%d", scorer.calls, ctxl.calls)
	}
}

// TestProcessFileSubmission checks the extracting stage runs for file items
// and the extracted text feeds the analysis.
func TestProcessFileSubmission(t *testing.T) {
	repo := newFakeRepo(fileSubmission("sub-2", "blob-ref", "note.txt"))
	blobs := &fakeBlobs{data: []byte("file contents"), contentType: "text/plain"}
	ext := &fakeExtractor{text: "file contents"}
	scorer := &fakeScorer{signals: &models.ToxicitySignals{}}
	ctxl := &fakeContextual{assessment: "ok"}

	p := newProcessor(repo, blobs, ext, scorer, ctxl, nil)
	p.Process(context.Background(), "sub-2")

	sub := repo.subs["sub-2"]
	if sub.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed (error=%v)", sub.Status, sub.ErrorMessage)
	}
	if got := strings.Join(repo.transitions, ","); got != "extracting,analyzing,completed" {
		t.Fatalf("transitions = %q", got)
	}
	if sub.ExtractedText == nil || *sub.ExtractedText != "file contents" {
		t.Fatalf("extracted text = %v", sub.ExtractedText)
	}
}

// TestProcessExtractionFailure verifies a failed extraction terminates the
// record without running any scoring.
func TestProcessExtractionFailure(t *testing.T) {
	repo := newFakeRepo(fileSubmission("sub-3", "blob-ref", "img.png"))
	blobs := &fakeBlobs{data: []byte{1, 2, 3}, contentType: "image/png"}
	ext := &fakeExtractor{err: errors.New("text extraction failed: service down")}
	scorer := &fakeScorer{}
	ctxl := &fakeContextual{}

	p := newProcessor(repo, blobs, ext, scorer, ctxl, nil)
	p.Process(context.Background(), "sub-3")

	sub := repo.subs["sub-3"]
	if sub.Status != models.StatusError {
		t.Fatalf("status = %q, want error", sub.Status)
	}
	if sub.ErrorMessage == nil || *sub.ErrorMessage != "text extraction failed: service down" {
		t.Fatalf("error message = %v", sub.ErrorMessage)
	}
	if scorer.calls != 0 || ctxl.calls != 0 {
		t.Fatalf("scoring ran after extraction failure: scorer=%d contextual=%d", scorer.calls, ctxl.calls)
	}
}

// TestProcessBlobLoadFailure terminates the record when the payload is gone.
func TestProcessBlobLoadFailure(t *testing.T) {
	repo := newFakeRepo(fileSubmission("sub-4", "missing-ref", "doc.pdf"))
	blobs := &fakeBlobs{err: errors.New("blob not found")}

	p := newProcessor(repo, blobs, &fakeExtractor{}, &fakeScorer{}, &fakeContextual{}, nil)
	p.Process(context.Background(), "sub-4")

	sub := repo.subs["sub-4"]
	if sub.Status != models.StatusError {
		t.Fatalf("status = %q, want error", sub.Status)
	}
	if sub.ErrorMessage == nil || !strings.Contains(*sub.ErrorMessage, "failed to retrieve file") {
		t.Fatalf("error message = %v", sub.ErrorMessage)
	}
}

// TestProcessTerminalSkip checks that redelivered ids for finished records
// are no-ops.
func TestProcessTerminalSkip(t *testing.T) {
	done := textSubmission("sub-5", "already done")
	done.Status = models.StatusCompleted
	repo := newFakeRepo(done)
	scorer := &fakeScorer{}

	p := newProcessor(repo, nil, nil, scorer, &fakeContextual{}, nil)
	p.Process(context.Background(), "sub-5")

	if scorer.calls != 0 {
		t.Fatalf("scorer called %d times for a terminal record", scorer.calls)
	}
	if len(repo.transitions) != 0 {
		t.Fatalf("transitions = %v, want none", repo.transitions)
	}
}

// TestProcessUnknownID is a no-op that must not create or error anything.
func TestProcessUnknownID(t *testing.T) {
	repo := newFakeRepo()
	p := newProcessor(repo, nil, nil, &fakeScorer{}, &fakeContextual{}, nil)
	p.Process(context.Background(), "no-such-id")

	if len(repo.subs) != 0 || len(repo.transitions) != 0 {
		t.Fatal("processing an unknown id mutated state")
	}
}

// TestProcessHardScorerFailure verifies the lexical heuristic carries the
// harassment signal when scoring fails hard, and that no signals are stored.
func TestProcessHardScorerFailure(t *testing.T) {
	repo := newFakeRepo(textSubmission("sub-6", "you are a worthless loser, nobody likes you"))
	scorer := &fakeScorer{err: context.Canceled}
	ctxl := &fakeContextual{assessment: "Targeted insults and social exclusion."}

	p := newProcessor(repo, nil, nil, scorer, ctxl, nil)
	p.Process(context.Background(), "sub-6")

	sub := repo.subs["sub-6"]
	if sub.Status != models.StatusCompleted {
		t.Fatalf("status = %q, want completed", sub.Status)
	}
	if sub.ToxicitySignals != nil {
		t.Fatalf("signals = %+v, want none stored", sub.ToxicitySignals)
	}
	if sub.Cyberbullying == nil || !sub.Cyberbullying.Categories["direct_insults"] {
		t.Fatalf("cyberbullying = %+v, want lexical categories", sub.Cyberbullying)
	}
}

// TestProcessHarmfulNotifies checks a harmful classification reaches the
// notifier with the analysis attached.
func TestProcessHarmfulNotifies(t *testing.T) {
	repo := newFakeRepo(textSubmission("sub-7", "threats"))
	scorer := &fakeScorer{signals: &models.ToxicitySignals{SevereToxicity: 0.9, Threat: 0.9}}
	notifier := &fakeNotifier{}

	p := newProcessor(repo, nil, nil, scorer, &fakeContextual{assessment: "Severe threats."}, notifier)
	p.Process(context.Background(), "sub-7")

	if len(notifier.flagged) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.flagged))
	}
	flagged := notifier.flagged[0]
	if flagged.Classification == nil || *flagged.Classification != models.ClassificationHarmful {
		t.Fatalf("flagged classification = %v", flagged.Classification)
	}
	if flagged.Cyberbullying == nil || flagged.ToxicitySignals == nil {
		t.Fatal("flagged submission missing analysis payload")
	}
}

// TestProcessSafeDoesNotNotify keeps the notifier quiet for non-harmful
// outcomes.
func TestProcessSafeDoesNotNotify(t *testing.T) {
	repo := newFakeRepo(textSubmission("sub-8", "hello"))
	notifier := &fakeNotifier{}

	p := newProcessor(repo, nil, nil, &fakeScorer{signals: &models.ToxicitySignals{}}, &fakeContextual{}, notifier)
	p.Process(context.Background(), "sub-8")

	if len(notifier.flagged) != 0 {
		t.Fatalf("notifications = %d, want 0", len(notifier.flagged))
	}
}

// TestProcessPanicRecovery verifies a panicking stage lands the record in
// error status instead of crashing the worker.
func TestProcessPanicRecovery(t *testing.T) {
	repo := newFakeRepo(fileSubmission("sub-9", "ref", "doc.pdf"))
	blobs := &fakeBlobs{data: []byte("x"), contentType: "application/pdf"}
	ext := &fakeExtractor{panic: true}

	p := newProcessor(repo, blobs, ext, &fakeScorer{}, &fakeContextual{}, nil)
	p.Process(context.Background(), "sub-9")

	sub := repo.subs["sub-9"]
	if sub.Status != models.StatusError {
		t.Fatalf("status = %q, want error", sub.Status)
	}
	if sub.ErrorMessage == nil || !strings.Contains(*sub.ErrorMessage, "internal error") {
		t.Fatalf("error message = %v", sub.ErrorMessage)
	}
}
