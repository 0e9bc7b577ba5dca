// Package api provides the ops HTTP surface of the bot.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ashureev/countingbot/internal/achievements"
	"github.com/ashureev/countingbot/internal/counting"
	"github.com/ashureev/countingbot/internal/domain"
	"github.com/ashureev/countingbot/internal/goals"
	"github.com/ashureev/countingbot/internal/jsoncodec"
	"github.com/ashureev/countingbot/internal/store"
)

const maxBodyBytes = 1 << 20

// Counter is the part of the counting engine the API reads and tunes.
type Counter interface {
	Snapshot() counting.State
	SetDelay(ctx context.Context, d time.Duration) error
}

// GoalCreator starts new goals.
type GoalCreator interface {
	Create(ctx context.Context, req goals.CreateRequest, baseline domain.Baseline) (*domain.Goal, error)
}

// AchievementLister resolves the achievements a user holds.
type AchievementLister interface {
	Earned(ctx context.Context, userID string) ([]achievements.Definition, error)
}

// Handler serves the /api routes.
type Handler struct {
	repo         store.Repository
	counter      Counter
	goals        GoalCreator
	achievements AchievementLister
	logger       *slog.Logger
	now          func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(repo store.Repository, counter Counter, goalCreator GoalCreator, lister AchievementLister, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		repo:         repo,
		counter:      counter,
		goals:        goalCreator,
		achievements: lister,
		logger:       logger.With("component", "api"),
		now:          time.Now,
	}
}

var validate = validator.New()

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsoncodec.Encode(w, v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return jsoncodec.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), v)
}

// decodeBody reads a JSON body into v and validates it. It writes the 400
// response itself and reports whether the handler should continue.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(w, r, v); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		Error(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// queryInt parses an optional positive integer query parameter, clamped to max.
func queryInt(r *http.Request, name string, def, maxVal int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return min(n, maxVal), nil
}
