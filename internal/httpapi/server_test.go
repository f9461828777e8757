package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/httpapi"
	"github.com/p-n-ai/pai-curriculum/internal/realtime"
	"github.com/p-n-ai/pai-curriculum/internal/session"
)

const mathSubmission = `{
  "subjectName": "Math",
  "board": "CBSE",
  "grade": "10",
  "chapters": [{
    "chapterName": "Algebra",
    "topics": [{
      "topicName": "Linear Eq",
      "subtopics": [{
        "subtopicName": "Solving",
        "videos": [{
          "videoUrl": "https://x/1",
          "quiz": {"questions": [{"que": "1+1?", "options": {"A": "1", "B": "2", "C": "3", "D": "4"}, "correctAnswer": "B"}]}
        }]
      }]
    }]
  }]
}`

type response struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
	Detail  string            `json:"detail"`
}

func newTestServer(t *testing.T, cfg httpapi.Config) http.Handler {
	t.Helper()
	if cfg.Service == nil {
		cfg.Service = curriculum.NewService(curriculum.ServiceConfig{})
	}
	return httpapi.New(cfg).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		checks     []httpapi.Check
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "readyz returns 200",
			checks:     []httpapi.Check{{Name: "database", Fn: func(context.Context) error { return nil }}},
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
		{
			name: "readyz reports failed checks",
			checks: []httpapi.Check{
				{Name: "database", Fn: func(context.Context) error { return nil }},
				{Name: "cache", Fn: func(context.Context) error { return errors.New("connection refused") }},
			},
			path:       "/readyz",
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"checks":{"cache":"connection refused"},"status":"not ready"}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, httpapi.Config{Checks: tt.checks})
			rec := do(t, h, http.MethodGet, tt.path, "")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestPostCurriculumAndRead(t *testing.T) {
	h := newTestServer(t, httpapi.Config{})

	rec := do(t, h, http.MethodPost, "/api/curriculum", mathSubmission)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[response](t, rec)
	var sum curriculum.Summary
	json.Unmarshal(resp.Data, &sum)
	if !resp.Success || !sum.SubjectCreated || sum.TotalQuestions != 1 || len(sum.SampleQuestions) != 1 {
		t.Errorf("POST response = %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/curriculum/Math", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	resp = decode[response](t, rec)
	var tree curriculum.SubjectTree
	json.Unmarshal(resp.Data, &tree)
	if !resp.Success || tree.Name != "Math" || len(tree.Chapters) != 1 {
		t.Errorf("GET response = %s", rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/content?board=cbse&grade=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("content status = %d", rec.Code)
	}
	if trees := decode[[]curriculum.SubjectTree](t, rec); len(trees) != 1 {
		t.Errorf("content = %d trees, want 1", len(trees))
	}

	rec = do(t, h, http.MethodGet, "/api/subjects?board=CBSE", "")
	if subjects := decode[[]curriculum.Subject](t, rec); rec.Code != http.StatusOK || len(subjects) != 1 {
		t.Errorf("subjects = %d %s", rec.Code, rec.Body.String())
	}
}

func TestPostCurriculum_NullNamesSkipped(t *testing.T) {
	h := newTestServer(t, httpapi.Config{})

	body := `{"subjectName":"Math","board":"CBSE","grade":"10","chapters":[
		{"chapterName":null,"topics":[{"topicName":"Orphan"}]},
		{"chapterName":"Algebra","topics":[
			{"topicName":null},
			{"topicName":"Linear Eq","subtopics":[
				{"subtopicName":null},
				{"subtopicName":"Solving","videos":[
					{"videoUrl":null},
					{"videoUrl":"https://x/1","quiz":{"questions":[{"que":null,"correctAnswer":null}]}}
				]}
			]}
		]}
	]}`

	rec := do(t, h, http.MethodPost, "/api/curriculum", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d, body %s", rec.Code, rec.Body.String())
	}
	var sum curriculum.Summary
	json.Unmarshal(decode[response](t, rec).Data, &sum)
	if sum.Chapters.Created != 1 || sum.Topics.Created != 1 || sum.Subtopics.Created != 1 || sum.Videos.Created != 1 {
		t.Errorf("summary = %+v, want one node per level", sum)
	}
	if sum.Quizzes.Created != 0 || sum.TotalQuestions != 0 {
		t.Errorf("quizzes = %+v, questions = %d; want none", sum.Quizzes, sum.TotalQuestions)
	}

	var tree curriculum.SubjectTree
	json.Unmarshal(decode[response](t, do(t, h, http.MethodGet, "/api/curriculum/Math", "")).Data, &tree)
	if len(tree.Chapters) != 1 || tree.Chapters[0].ChapterName != "Algebra" {
		t.Fatalf("chapters = %+v, want [Algebra]", tree.Chapters)
	}
	topics := tree.Chapters[0].Topics
	if len(topics) != 1 || len(topics[0].Subtopics) != 1 {
		t.Fatalf("topics = %+v, want one topic with one subtopic", topics)
	}
	videos := topics[0].Subtopics[0].Videos
	if len(videos) != 1 || videos[0].VideoURL != "https://x/1" || videos[0].Quiz != nil {
		t.Errorf("videos = %+v, want https://x/1 without a quiz", videos)
	}
}

func TestErrorMapping(t *testing.T) {
	h := newTestServer(t, httpapi.Config{})
	do(t, h, http.MethodPost, "/api/curriculum", mathSubmission)

	video := `{"subName":"Math","chapterName":"Algebra","topicName":"Linear Eq","subtopicName":"Solving","videoUrl":"https://x/2"}`

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantField  string
	}{
		{"missing subject", http.MethodGet, "/api/curriculum/Nonexistent", "", http.StatusNotFound, ""},
		{"no content", http.MethodGet, "/api/content?board=ICSE&grade=10", "", http.StatusNotFound, ""},
		{"content needs scope", http.MethodGet, "/api/content", "", http.StatusBadRequest, "board"},
		{"bad board", http.MethodGet, "/api/subjects?board=IB", "", http.StatusBadRequest, "board"},
		{"schema", http.MethodPost, "/api/curriculum", `{"subjectName":"Math"}`, http.StatusBadRequest, "grade"},
		{"not json", http.MethodPost, "/api/curriculum", `subjectName=Math`, http.StatusBadRequest, "body"},
		{"video created", http.MethodPost, "/api/videos", video, http.StatusCreated, ""},
		{"video duplicate", http.MethodPost, "/api/videos", video, http.StatusConflict, ""},
		{
			"video unknown subtopic", http.MethodPost, "/api/videos",
			strings.Replace(video, "Solving", "Graphing", 1), http.StatusNotFound, "",
		},
		{"video missing field", http.MethodPost, "/api/videos", `{"subName":"Math"}`, http.StatusBadRequest, "videoUrl"},
		{"video bad body", http.MethodPost, "/api/videos", `[`, http.StatusBadRequest, "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if rec.Code >= 400 {
				resp := decode[response](t, rec)
				if resp.Success || resp.Error == "" {
					t.Errorf("error body = %s", rec.Body.String())
				}
				if tt.wantField != "" && resp.Fields[tt.wantField] == "" {
					t.Errorf("fields = %v, want %s", resp.Fields, tt.wantField)
				}
			}
		})
	}
}

// brokenStore fails every read.
type brokenStore struct {
	curriculum.Store
}

func (brokenStore) FindSubjects(context.Context, curriculum.SubjectFilter) ([]curriculum.Subject, error) {
	return nil, errors.New("relation \"subjects\" does not exist")
}

func TestInternalErrorDetail(t *testing.T) {
	for _, dev := range []bool{false, true} {
		svc := curriculum.NewService(curriculum.ServiceConfig{Store: brokenStore{Store: curriculum.NewMemoryStore()}})
		h := newTestServer(t, httpapi.Config{Service: svc, Development: dev})

		rec := do(t, h, http.MethodGet, "/api/subjects", "")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		resp := decode[response](t, rec)
		if resp.Error != "Internal Server Error" {
			t.Errorf("error = %q", resp.Error)
		}
		if gotDetail := strings.Contains(resp.Detail, "does not exist"); gotDetail != dev {
			t.Errorf("development=%v: detail = %q", dev, resp.Detail)
		}
	}
}

func TestSubjects_IdentityFallback(t *testing.T) {
	svc := curriculum.NewService(curriculum.ServiceConfig{})
	for _, sub := range []curriculum.Submission{
		{SubjectName: "Math", Board: "CBSE", Grade: "10"},
		{SubjectName: "Math", Board: "ICSE", Grade: "9"},
	} {
		if _, err := svc.PostCurriculumForm(t.Context(), sub); err != nil {
			t.Fatalf("PostCurriculumForm() error = %v", err)
		}
	}

	sessions := session.NewMemoryStore()
	sessions.Save(t.Context(), "tok-icse", session.Identity{UserID: "u-1", Board: curriculum.BoardICSE, Grade: "9"}, 0)
	h := newTestServer(t, httpapi.Config{Service: svc, Sessions: sessions})

	tests := []struct {
		name       string
		path       string
		header     []string
		wantStatus int
		wantCount  int
	}{
		{"anonymous sees all", "/api/subjects", nil, http.StatusOK, 2},
		{"identity scopes", "/api/subjects", []string{"Authorization", "Bearer tok-icse"}, http.StatusOK, 1},
		{"query wins", "/api/subjects?board=CBSE", []string{"Authorization", "Bearer tok-icse"}, http.StatusOK, 1},
		{"unknown token", "/api/subjects", []string{"Authorization", "Bearer nope"}, http.StatusUnauthorized, 0},
		{"other scheme ignored", "/api/subjects", []string{"Authorization", "Basic dTpw"}, http.StatusOK, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, "", tt.header...)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Code == http.StatusOK {
				if got := len(decode[[]curriculum.Subject](t, rec)); got != tt.wantCount {
					t.Errorf("subjects = %d, want %d", got, tt.wantCount)
				}
			}
		})
	}

	rec := do(t, h, http.MethodGet, "/api/content", "", "Authorization", "Bearer tok-icse")
	if rec.Code != http.StatusOK {
		t.Errorf("content with identity status = %d, want 200", rec.Code)
	}
}

func TestImportSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	f.SetSheetRow(sheet, "A1", &[]any{"Chapter", "Topic", "Subtopic", "Video URL"})
	f.SetSheetRow(sheet, "A2", &[]any{"Algebra", "Linear Eq", "Solving", "https://x/1"})
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	f.Close()

	h := newTestServer(t, httpapi.Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/curriculum/import?subjectName=Math&board=CBSE&grade=10", bytes.NewReader(buf.Bytes()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/curriculum/import?subjectName=Math&board=CBSE&grade=10", "not a workbook")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad workbook status = %d, want 400", rec.Code)
	}
}

func TestCacheStats(t *testing.T) {
	h := newTestServer(t, httpapi.Config{})
	do(t, h, http.MethodGet, "/api/subjects", "")
	do(t, h, http.MethodGet, "/api/subjects", "")

	rec := do(t, h, http.MethodGet, "/api/cache/stats", "")
	stats := decode[map[string]any](t, rec)
	if stats["hits"] != float64(1) || stats["misses"] != float64(1) || stats["entries"] != float64(1) {
		t.Errorf("stats = %v", stats)
	}
}

func TestEventsRoute(t *testing.T) {
	without := newTestServer(t, httpapi.Config{})
	if rec := do(t, without, http.MethodGet, "/api/events", ""); rec.Code != http.StatusNotFound {
		t.Errorf("events without hub status = %d, want 404", rec.Code)
	}

	with := newTestServer(t, httpapi.Config{Events: realtime.NewHub()})
	if rec := do(t, with, http.MethodGet, "/api/events", ""); rec.Code == http.StatusNotFound {
		t.Error("events route should be mounted when a hub is configured")
	}
}
