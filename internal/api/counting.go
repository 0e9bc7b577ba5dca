package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/countingbot/internal/domain"
)

type stateResponse struct {
	LastNumber    *int64 `json:"last_number"`
	LastUser      string `json:"last_user,omitempty"`
	LastMessageID string `json:"last_message_id,omitempty"`
	DelayMS       int64  `json:"delay_ms"`
	SelfID        string `json:"self_id,omitempty"`
}

// GetState returns the current baseline and delay.
func (h *Handler) GetState(w http.ResponseWriter, _ *http.Request) {
	s := h.counter.Snapshot()
	resp := stateResponse{DelayMS: s.Delay.Milliseconds(), SelfID: s.SelfID}
	if s.Baseline.Set {
		n := s.Baseline.Number
		resp.LastNumber = &n
		resp.LastUser = s.Baseline.AuthorID
		resp.LastMessageID = s.Baseline.MessageID
	}
	JSON(w, http.StatusOK, resp)
}

type countDelayRequest struct {
	DelayMS *int64 `json:"delay_ms" validate:"required,gte=0,lte=3600000"`
}

// SetCountDelay changes the per-user cooldown and persists it.
func (h *Handler) SetCountDelay(w http.ResponseWriter, r *http.Request) {
	var req countDelayRequest
	if !decodeBody(w, r, &req) {
		return
	}
	d := time.Duration(*req.DelayMS) * time.Millisecond
	if err := h.counter.SetDelay(r.Context(), d); err != nil {
		h.logger.Error("Failed to persist count delay", "delay_ms", *req.DelayMS, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save delay")
		return
	}
	h.logger.Info("Count delay changed", "delay_ms", *req.DelayMS)
	JSON(w, http.StatusOK, map[string]int64{"delay_ms": *req.DelayMS})
}

// GetLeaderboard returns users ordered by fame.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10, 100)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	users, err := h.repo.TopUsers(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to load leaderboard", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	if users == nil {
		users = []*domain.UserStats{}
	}
	JSON(w, http.StatusOK, map[string]any{"users": users})
}

type achievementView struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GetUser returns a user's aggregate and earned achievements.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	stats, err := h.repo.GetUserStats(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to load user", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if stats == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}

	earned, err := h.achievements.Earned(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to load achievements", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load achievements")
		return
	}
	views := make([]achievementView, 0, len(earned))
	for _, d := range earned {
		views = append(views, achievementView{ID: d.ID, Title: d.Title, Description: d.Description})
	}
	JSON(w, http.StatusOK, map[string]any{"stats": stats, "achievements": views})
}

// GetDaily returns the per-day accepted counters.
func (h *Handler) GetDaily(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 7, 366)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	counts, err := h.repo.DailyCounts(r.Context(), days)
	if err != nil {
		h.logger.Error("Failed to load daily counts", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load daily counts")
		return
	}
	if counts == nil {
		counts = []domain.DailyCount{}
	}
	JSON(w, http.StatusOK, map[string]any{"days": counts})
}
