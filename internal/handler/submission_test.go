package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"moderator/internal/models"
	"moderator/internal/repository"
	"moderator/internal/service"
)

type memRepo struct {
	subs map[string]*models.Submission
}

func newMemRepo() *memRepo {
	return &memRepo{subs: make(map[string]*models.Submission)}
}

func (r *memRepo) Create(sub *models.Submission) error {
	r.subs[sub.ID] = sub
	return nil
}

func (r *memRepo) GetByID(id string) (*models.Submission, error) {
	sub, ok := r.subs[id]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	return sub, nil
}

func (r *memRepo) MarkExtracting(string) error { return nil }

func (r *memRepo) MarkAnalyzing(string) error { return nil }

func (r *memRepo) SetExtractedText(string, string) error { return nil }

func (r *memRepo) Complete(string, *models.ToxicitySignals, *models.CyberbullyingResult, string, models.Classification) error {
	return nil
}

func (r *memRepo) MarkError(id string, message string) error {
	if sub, ok := r.subs[id]; ok {
		sub.Status = models.StatusError
		sub.ErrorMessage = &message
	}
	return nil
}

func (r *memRepo) Recent(int) ([]*models.SubmissionSummary, error) {
	return []*models.SubmissionSummary{{ID: "s1", SourceKind: models.SourceText}}, nil
}

type acceptAllQueue struct{}

func (acceptAllQueue) Submit(string) bool { return true }

type memBlobs struct{}

func (memBlobs) Save([]byte, string, string) (string, error) { return "blob-ref", nil }

func newTestRouter(repo *memRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewSubmissionService(repo, memBlobs{}, acceptAllQueue{}, zap.NewNop())
	h := NewSubmissionHandler(svc, zap.NewNop())

	router := gin.New()
	api := router.Group("/api")
	api.POST("/upload", h.Upload)
	api.POST("/analyze-text", h.AnalyzeText)
	api.GET("/analysis-status/:id", h.Status)
	api.GET("/recent-submissions", h.Recent)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestAnalyzeText accepts raw text and returns the submission id.
func TestAnalyzeText(t *testing.T) {
	repo := newMemRepo()
	router := newTestRouter(repo)

	w := doJSON(t, router, http.MethodPost, "/api/analyze-text", gin.H{"text": "hello there"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success      bool   `json:"success"`
		SubmissionID string `json:"submission_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.SubmissionID == "" {
		t.Fatalf("response = %s", w.Body.String())
	}
	if _, ok := repo.subs[resp.SubmissionID]; !ok {
		t.Fatal("no record created for returned id")
	}
}

// TestAnalyzeTextRejectsMissingText covers both binding failures and
// whitespace-only input.
func TestAnalyzeTextRejectsMissingText(t *testing.T) {
	router := newTestRouter(newMemRepo())

	for _, body := range []any{gin.H{}, gin.H{"text": ""}, gin.H{"text": "   "}} {
		w := doJSON(t, router, http.MethodPost, "/api/analyze-text", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %v: status = %d, want 400", body, w.Code)
		}
	}
}

// TestUpload accepts a multipart file and returns the submission id.
func TestUpload(t *testing.T) {
	repo := newMemRepo()
	router := newTestRouter(repo)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "note.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("file body")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "submission_id") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

// TestUploadWithoutFile rejects requests missing the form field.
func TestUploadWithoutFile(t *testing.T) {
	router := newTestRouter(newMemRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// TestStatusNotFound maps unknown ids to 404.
func TestStatusNotFound(t *testing.T) {
	router := newTestRouter(newMemRepo())

	w := doJSON(t, router, http.MethodGet, "/api/analysis-status/unknown-id", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

// TestStatusCompleted returns the analysis result payload.
func TestStatusCompleted(t *testing.T) {
	repo := newMemRepo()
	class := models.ClassificationSafe
	assessment := "Benign."
	repo.subs["done"] = &models.Submission{
		ID:                   "done",
		SourceKind:           models.SourceText,
		RawReference:         "hi",
		Status:               models.StatusCompleted,
		ToxicitySignals:      &models.ToxicitySignals{},
		Cyberbullying:        &models.CyberbullyingResult{Score: 0.1},
		ContextualAssessment: &assessment,
		Classification:       &class,
	}
	router := newTestRouter(repo)

	w := doJSON(t, router, http.MethodGet, "/api/analysis-status/done", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Status string `json:"status"`
		Result *struct {
			Classification string `json:"classification"`
			OriginalText   string `json:"original_text"`
		} `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "completed" || resp.Result == nil {
		t.Fatalf("response = %s", w.Body.String())
	}
	if resp.Result.Classification != "Safe" || resp.Result.OriginalText != "hi" {
		t.Fatalf("result = %+v", resp.Result)
	}
}

// TestRecent lists the feed.
func TestRecent(t *testing.T) {
	router := newTestRouter(newMemRepo())

	w := doJSON(t, router, http.MethodGet, "/api/recent-submissions?limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"submissions"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}
