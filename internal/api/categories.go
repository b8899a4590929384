package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hirehub/hirehub-core/internal/audit"
	"github.com/hirehub/hirehub-core/internal/auth"
	"github.com/hirehub/hirehub-core/internal/category"
)

type createCategoryRequest struct {
	Name string `json:"name"`
}

// handleListCategories serves the list from the session's cache, filling
// it from the database on first use.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	store := category.ForSession(auth.SessionFromContext(r.Context()), s.catRepo)

	cats, err := store.Load(r.Context())
	if err != nil {
		s.logger.Error("loading categories failed", "error", err)
		writeInternalError(w, "failed to list categories")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"categories": cats,
		"count":      len(cats),
	})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	c := &category.Category{Name: req.Name}
	if err := s.catRepo.Create(r.Context(), c); err != nil {
		switch {
		case errors.Is(err, category.ErrInvalidName):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		case errors.Is(err, category.ErrExists):
			writeConflict(w, "category already exists")
		default:
			s.logger.Error("creating category failed", "error", err)
			writeInternalError(w, "failed to create category")
		}
		return
	}

	session := auth.SessionFromContext(r.Context())
	category.ForSession(session, s.catRepo).Add(*c)
	s.recorder.Record(audit.AuditLog{
		Action:     audit.ActionCreate,
		EntityType: audit.EntityCategory,
		EntityID:   c.ID,
		UserID:     session.CurrentUser(r.Context()).ID,
		SessionID:  session.ID(),
		Details:    map[string]any{"name": c.Name},
	})

	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.catRepo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, category.ErrNotFound) {
			writeNotFound(w, "category not found")
			return
		}
		s.logger.Error("deleting category failed", "category_id", id, "error", err)
		writeInternalError(w, "failed to delete category")
		return
	}

	session := auth.SessionFromContext(r.Context())
	category.ForSession(session, s.catRepo).Remove(id)
	s.recorder.Record(audit.AuditLog{
		Action:     audit.ActionDelete,
		EntityType: audit.EntityCategory,
		EntityID:   id,
		UserID:     session.CurrentUser(r.Context()).ID,
		SessionID:  session.ID(),
	})

	w.WriteHeader(http.StatusNoContent)
}
