package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/astrobot/server/internal/dispatch"
	"github.com/astrobot/server/internal/flow"
	"github.com/astrobot/server/internal/middleware"
	"github.com/astrobot/server/internal/model"
	"github.com/astrobot/server/internal/repo"
	"github.com/astrobot/server/internal/subscription"
)

// SessionResetter puts a user back to the start of the conversation.
type SessionResetter interface {
	ResetSession(ctx context.Context, userID string) error
}

// SubscriptionSetter overrides a user's subscription.
type SubscriptionSetter interface {
	SetSubscription(ctx context.Context, userID string, st subscription.State) error
}

// AdminHandler serves the operator API.
type AdminHandler struct {
	store         repo.Store
	sessions      SessionResetter
	subscriptions SubscriptionSetter
	logger        *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(store repo.Store, sessions SessionResetter, subs SubscriptionSetter, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{store: store, sessions: sessions, subscriptions: subs, logger: logger}
}

type sessionResponse struct {
	Stage          string         `json:"stage"`
	MenuPath       []string       `json:"menu_path"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	UsageCounters  map[string]int `json:"usage_counters"`
	UsagePeriod    string         `json:"usage_period"`
	Version        int64          `json:"version"`
}

type profileResponse struct {
	BirthDate          *string      `json:"birth_date"`
	BirthTime          *string      `json:"birth_time"`
	BirthTimeSkipped   bool         `json:"birth_time_skipped"`
	BirthPlace         *model.Place `json:"birth_place"`
	PreferredLanguage  string       `json:"preferred_language"`
	SubscriptionTier   string       `json:"subscription_tier"`
	SubscriptionStatus string       `json:"subscription_status"`
	Complete           bool         `json:"profile_complete"`
	ConfirmedAt        *time.Time   `json:"confirmed_at"`
}

type userResponse struct {
	UserID  string           `json:"user_id"`
	Session *sessionResponse `json:"session"`
	Profile *profileResponse `json:"profile"`
}

// HandleGetUser handles GET /admin/users/{userID}
func (h *AdminHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	snap, err := h.store.Load(r.Context(), userID)
	if errors.Is(err, repo.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("load user", zap.String("user_id", flow.MaskUserID(userID)), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	resp := userResponse{UserID: userID}
	if s := snap.Session; s != nil {
		resp.Session = &sessionResponse{
			Stage:          s.Stage.String(),
			MenuPath:       s.MenuPath,
			LastActivityAt: s.LastActivityAt,
			UsageCounters:  s.UsageCounters,
			UsagePeriod:    s.UsagePeriod,
			Version:        s.Version,
		}
	}
	if p := snap.Profile; p != nil {
		resp.Profile = &profileResponse{
			BirthDate:          p.BirthDate,
			BirthTime:          p.BirthTime,
			BirthTimeSkipped:   p.BirthTimeSkipped,
			BirthPlace:         p.BirthPlace,
			PreferredLanguage:  p.PreferredLanguage,
			SubscriptionTier:   string(p.SubscriptionTier),
			SubscriptionStatus: string(p.SubscriptionStatus),
			Complete:           p.Complete(),
			ConfirmedAt:        p.ConfirmedAt,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// HandleResetSession handles POST /admin/users/{userID}/reset
func (h *AdminHandler) HandleResetSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	err := h.sessions.ResetSession(r.Context(), userID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "user not found")
		return
	case errors.Is(err, dispatch.ErrBusy), errors.Is(err, repo.ErrVersionConflict):
		respondWithError(w, http.StatusConflict, "user is busy, retry later")
		return
	case err != nil:
		h.logger.Error("reset session", zap.String("user_id", flow.MaskUserID(userID)), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to reset session")
		return
	}

	h.audit(r, "session reset", userID)
	w.WriteHeader(http.StatusNoContent)
}

type subscriptionRequest struct {
	Tier   string `json:"tier"`
	Status string `json:"status"`
}

// HandleSetSubscription handles PUT /admin/users/{userID}/subscription
func (h *AdminHandler) HandleSetSubscription(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req subscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	st := subscription.State{
		Tier:   model.ParseTier(req.Tier),
		Status: model.ParseSubscriptionStatus(req.Status),
	}
	if string(st.Tier) != req.Tier || string(st.Status) != req.Status {
		respondWithError(w, http.StatusUnprocessableEntity, "unknown tier or status")
		return
	}

	if err := h.subscriptions.SetSubscription(r.Context(), userID, st); err != nil {
		h.logger.Error("set subscription", zap.String("user_id", flow.MaskUserID(userID)), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to set subscription")
		return
	}

	h.audit(r, "subscription set", userID, zap.String("tier", req.Tier), zap.String("status", req.Status))
	respondJSON(w, http.StatusOK, st)
}

func (h *AdminHandler) audit(r *http.Request, msg, userID string, fields ...zap.Field) {
	operator, _ := middleware.GetOperator(r.Context())
	fields = append(fields,
		zap.String("operator", operator),
		zap.String("user_id", flow.MaskUserID(userID)))
	h.logger.Info(msg, fields...)
}
