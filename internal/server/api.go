package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/courseshelf/shelf/internal/catalog"
	"github.com/courseshelf/shelf/internal/store"
)

// handleAvailableCourses serves the catalog as a bare JSON array so that a
// catalog.HTTPReader can read it. Failures use the error envelope.
func (s *Server) handleAvailableCourses(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		sendError(w, http.StatusServiceUnavailable, "no catalog configured")
		return
	}

	courses, err := s.catalog.ListAvailableCourses(r.Context())
	if err != nil {
		s.logger.Printf("Catalog read failed: %v", err)
		sendError(w, http.StatusBadGateway, err.Error())
		return
	}
	if courses == nil {
		courses = []catalog.AvailableCourse{}
	}
	writeJSON(w, http.StatusOK, courses)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		sendError(w, http.StatusServiceUnavailable, "sync is not enabled")
		return
	}
	sendSuccess(w, http.StatusOK, s.engine.Status())
}

// handleSync runs a sync and returns its report. A sync already in flight
// yields 409 and a failed catalog fetch 502; per-course import failures
// are reported in the body with 200.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		sendError(w, http.StatusServiceUnavailable, "sync is not enabled")
		return
	}

	report := s.engine.Sync(r.Context())
	switch {
	case report.Suppressed:
		writeJSON(w, http.StatusConflict, Response{Success: false, Data: report, Error: report.Error})
	case errors.Is(report.Err(), catalog.ErrCatalogUnavailable):
		writeJSON(w, http.StatusBadGateway, Response{Success: false, Data: report, Error: report.Error})
	default:
		sendSuccess(w, http.StatusOK, report)
	}
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.store.ListCourses(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	if courses == nil {
		courses = []*store.Course{}
	}
	sendSuccess(w, http.StatusOK, courses)
}

// CourseDetail is a course with its table of contents.
type CourseDetail struct {
	*store.Course
	Parts    []*store.Part    `json:"parts"`
	Chapters []ChapterSummary `json:"chapters"`
}

// ChapterSummary is a chapter without its body text.
type ChapterSummary struct {
	ID          string              `json:"id"`
	ChapterID   string              `json:"chapterId"`
	PartID      string              `json:"partId,omitempty"`
	Title       string              `json:"title"`
	Order       int                 `json:"order"`
	Subchapters []SubchapterSummary `json:"subchapters"`
}

// SubchapterSummary is a subchapter without its body text.
type SubchapterSummary struct {
	ID           string `json:"id"`
	SubchapterID string `json:"subchapterId"`
	Title        string `json:"title"`
	Order        int    `json:"order"`
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := chi.URLParam(r, "courseID")

	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	parts, err := s.store.ListParts(ctx, courseID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	chapters, err := s.store.ListChapters(ctx, courseID)
	if err != nil {
		s.storeError(w, err)
		return
	}

	detail := CourseDetail{Course: course, Parts: parts, Chapters: make([]ChapterSummary, 0, len(chapters))}
	if detail.Parts == nil {
		detail.Parts = []*store.Part{}
	}
	for _, ch := range chapters {
		subs, err := s.store.ListSubchapters(ctx, courseID, ch.ChapterID)
		if err != nil {
			s.storeError(w, err)
			return
		}
		summary := ChapterSummary{
			ID:          ch.ID,
			ChapterID:   ch.ChapterID,
			PartID:      ch.PartID,
			Title:       ch.Title,
			Order:       ch.Order,
			Subchapters: make([]SubchapterSummary, 0, len(subs)),
		}
		for _, sub := range subs {
			summary.Subchapters = append(summary.Subchapters, SubchapterSummary{
				ID:           sub.ID,
				SubchapterID: sub.SubchapterID,
				Title:        sub.Title,
				Order:        sub.Order,
			})
		}
		detail.Chapters = append(detail.Chapters, summary)
	}

	sendSuccess(w, http.StatusOK, detail)
}

// handleRemoveCourse deletes a course together with the learner's progress
// and notes for it.
func (s *Server) handleRemoveCourse(w http.ResponseWriter, r *http.Request) {
	removal, err := s.store.RemoveCourse(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, removal)
}

// ChapterDetail is a chapter with its body and subchapters.
type ChapterDetail struct {
	*store.Chapter
	Subchapters []*store.Subchapter `json:"subchapters"`
}

func (s *Server) handleGetChapter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID, chapterID := chi.URLParam(r, "courseID"), chi.URLParam(r, "chapterID")

	ch, err := s.store.GetChapter(ctx, courseID, chapterID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	subs, err := s.store.ListSubchapters(ctx, courseID, chapterID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if subs == nil {
		subs = []*store.Subchapter{}
	}
	sendSuccess(w, http.StatusOK, ChapterDetail{Chapter: ch, Subchapters: subs})
}

func (s *Server) handleListProgress(w http.ResponseWriter, r *http.Request) {
	filter := store.ProgressFilter{
		CourseID:     chi.URLParam(r, "courseID"),
		OrphanedOnly: r.URL.Query().Get("orphaned") == "true",
	}
	list, err := s.store.ListProgress(r.Context(), filter)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if list == nil {
		list = []*store.Progress{}
	}
	sendSuccess(w, http.StatusOK, list)
}

// progressRequest is the body of PUT /api/progress.
type progressRequest struct {
	CourseID     string `json:"courseId"`
	ChapterID    string `json:"chapterId"`
	SubchapterID string `json:"subchapterId"`
	Completed    bool   `json:"completed"`
}

func (s *Server) handleMarkProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.CourseID == "" || req.ChapterID == "" {
		sendError(w, http.StatusBadRequest, "courseId and chapterId are required")
		return
	}

	p, err := s.store.MarkProgress(r.Context(), req.CourseID, req.ChapterID, req.SubchapterID, req.Completed)
	if err != nil {
		s.storeError(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, p)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	filter := store.NoteFilter{
		CourseID:  chi.URLParam(r, "courseID"),
		ChapterID: r.URL.Query().Get("chapterId"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			sendError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	notes, err := s.store.ListNotes(r.Context(), filter)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if notes == nil {
		notes = []*store.Note{}
	}
	sendSuccess(w, http.StatusOK, notes)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req store.NewNote
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.CourseID == "" {
		sendError(w, http.StatusBadRequest, "courseId is required")
		return
	}
	if req.SubchapterID != "" && req.ChapterID == "" {
		sendError(w, http.StatusBadRequest, "subchapterId requires chapterId")
		return
	}

	note, err := s.store.CreateNote(r.Context(), req)
	if err != nil {
		s.storeError(w, err)
		return
	}
	sendSuccess(w, http.StatusCreated, note)
}

// noteUpdate is the body of PUT /api/notes/{noteID}.
type noteUpdate struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req noteUpdate
	if err := decodeBody(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	note, err := s.store.UpdateNote(r.Context(), chi.URLParam(r, "noteID"), req.Title, req.Content)
	if err != nil {
		s.storeError(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "noteID")
	if err := s.store.DeleteNote(r.Context(), noteID); err != nil {
		s.storeError(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, map[string]string{"id": noteID})
}

// storeError maps store errors to responses. Unexpected errors are logged
// and hidden behind a generic message.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		sendError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Printf("Store error: %v", err)
	sendError(w, http.StatusInternalServerError, "internal error")
}
