package handler

import (
	"net/http"

	"github.com/mmeshcher/bartender-loyalty/internal/leaderboard"
	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

type leaderboardResponse struct {
	Period  string                   `json:"period"`
	Entries []model.LeaderboardEntry `json:"entries"`
}

// Leaderboard возвращает рейтинг барменов за период.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", leaderboard.DefaultLimit)
	if err != nil {
		h.fail(w, r, "leaderboard", err)
		return
	}
	period := r.URL.Query().Get("period")

	entries, err := h.service.Leaderboard(r.Context(), period, limit)
	if err != nil {
		h.fail(w, r, "leaderboard", err)
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	if period == "" {
		period = string(leaderboard.PeriodAll)
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Period: period, Entries: entries})
}

// Achievements возвращает достижения текущего пользователя.
func (h *Handler) Achievements(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	report, err := h.service.Achievements(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "achievements", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
