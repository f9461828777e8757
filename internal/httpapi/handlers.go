package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/session"
)

// GET /api/subjects?board=&grade=
func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	board, grade, err := scope(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	subjects, err := s.svc.GetSubjects(r.Context(), board, grade)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

// GET /api/content?board=&grade=
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	board, grade, err := scope(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	verr := &curriculum.ValidationError{}
	if board == "" {
		verr.Fields = append(verr.Fields, curriculum.FieldError{Field: "board", Error: "this field is required"})
	}
	if grade == "" {
		verr.Fields = append(verr.Fields, curriculum.FieldError{Field: "grade", Error: "this field is required"})
	}
	if len(verr.Fields) > 0 {
		s.writeError(w, r, verr)
		return
	}

	trees, err := s.svc.GetCompleteContent(r.Context(), board, grade)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trees)
}

// GET /api/curriculum/{name}
func (s *Server) handleCurriculum(w http.ResponseWriter, r *http.Request) {
	tree, err := s.svc.GetCurriculumBySubjectName(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: tree})
}

// POST /api/curriculum
func (s *Server) handlePostCurriculum(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		s.writeError(w, r, bodyError("request body too large or unreadable"))
		return
	}
	if err := curriculum.ValidateSubmissionJSON(body); err != nil {
		s.writeError(w, r, err)
		return
	}

	var sub curriculum.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		s.writeError(w, r, bodyError("must be a JSON object"))
		return
	}

	sum, err := s.svc.PostCurriculumForm(r.Context(), sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: sum})
}

// POST /api/curriculum/import?subjectName=&board=&grade= with an xlsx body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sum, err := s.svc.ImportSpreadsheet(r.Context(),
		http.MaxBytesReader(w, r.Body, maxSheetBody),
		q.Get("subjectName"), q.Get("board"), q.Get("grade"),
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: sum})
}

// POST /api/videos
func (s *Server) handleAddVideo(w http.ResponseWriter, r *http.Request) {
	var in curriculum.AddVideoInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&in); err != nil {
		s.writeError(w, r, bodyError("must be a JSON object"))
		return
	}

	video, err := s.svc.AddVideo(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, video)
}

// GET /api/cache/stats
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Cache().Stats())
}

// scope reads the board and grade query parameters. When both are absent the
// caller's session identity supplies them.
func scope(r *http.Request) (curriculum.Board, string, error) {
	rawBoard := strings.TrimSpace(r.URL.Query().Get("board"))
	grade := strings.TrimSpace(r.URL.Query().Get("grade"))

	if rawBoard == "" && grade == "" {
		if id, ok := session.FromContext(r.Context()); ok {
			return id.Board, id.Grade, nil
		}
		return "", "", nil
	}
	if rawBoard == "" {
		return "", grade, nil
	}

	board, err := curriculum.ParseBoard(rawBoard)
	if err != nil {
		return "", "", &curriculum.ValidationError{Fields: []curriculum.FieldError{
			{Field: "board", Error: "must be one of CBSE, ICSE, State"},
		}}
	}
	return board, grade, nil
}

func bodyError(msg string) error {
	return &curriculum.ValidationError{Fields: []curriculum.FieldError{{Field: "body", Error: msg}}}
}
