package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/goals"
	"github.com/ashureev/countingbot/internal/middleware"
)

type goalResponse struct {
	Goal    *domain.Goal `json:"goal"`
	Percent *int         `json:"percent,omitempty"`
}

// GetCurrentGoal returns the active goal with its progress, or a null goal.
func (h *Handler) GetCurrentGoal(w http.ResponseWriter, r *http.Request) {
	g, err := h.repo.GetCurrentGoal(r.Context())
	if err != nil {
		h.logger.Error("Failed to load current goal", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load goal")
		return
	}
	resp := goalResponse{Goal: g}
	if g != nil && g.Target != nil {
		if b := h.counter.Snapshot().Baseline; b.Set {
			p := goals.Percent(b.Number, *g.Target)
			resp.Percent = &p
		}
	}
	JSON(w, http.StatusOK, resp)
}

// CreateGoal starts a new goal. set_by defaults to the authenticated actor.
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goals.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.SetBy == "" {
		req.SetBy = middleware.ActorFromContext(r.Context())
	}
	if err := validate.Struct(&req); err != nil {
		Error(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	g, err := h.goals.Create(r.Context(), req, h.counter.Snapshot().Baseline)
	if errors.Is(err, goals.ErrActiveGoal) {
		Error(w, http.StatusConflict, "a goal is already active; set replace to close it")
		return
	}
	if err != nil {
		h.logger.Error("Failed to create goal", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create goal")
		return
	}
	JSON(w, http.StatusCreated, goalResponse{Goal: g})
}
