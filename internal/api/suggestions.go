package api

import (
	"net/http"
	"strings"

	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/ids"
)

type suggestionRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Text   string `json:"text" validate:"required,max=1000"`
}

// ListSuggestions returns suggestions, optionally filtered by status.
func (h *Handler) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if err := validate.Var(status, "omitempty,oneof=open done rejected"); err != nil {
		Error(w, http.StatusBadRequest, "status must be one of open, done, rejected")
		return
	}
	limit, err := queryInt(r, "limit", 50, 200)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.repo.ListSuggestions(r.Context(), status, limit)
	if err != nil {
		h.logger.Error("Failed to list suggestions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list suggestions")
		return
	}
	if list == nil {
		list = []*domain.Suggestion{}
	}
	JSON(w, http.StatusOK, map[string]any{"suggestions": list})
}

// CreateSuggestion stores a new open suggestion.
func (h *Handler) CreateSuggestion(w http.ResponseWriter, r *http.Request) {
	var req suggestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	now := h.now().UTC()
	s := &domain.Suggestion{
		ID:        ids.NewAt(now),
		UserID:    req.UserID,
		Text:      strings.TrimSpace(req.Text),
		Status:    "open",
		CreatedAt: now,
	}
	if err := h.repo.InsertSuggestion(r.Context(), s); err != nil {
		h.logger.Error("Failed to store suggestion", "user_id", req.UserID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to store suggestion")
		return
	}
	JSON(w, http.StatusCreated, s)
}
