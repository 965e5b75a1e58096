package service

import (
	"context"

	"github.com/mmeshcher/bartender-loyalty/internal/leaderboard"
	"github.com/mmeshcher/bartender-loyalty/internal/model"
)

// Leaderboard строит рейтинг барменов за период.
func (s *Service) Leaderboard(ctx context.Context, period string, limit int) ([]model.LeaderboardEntry, error) {
	p, err := leaderboard.ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.LeaderboardRows(ctx, p.Since(s.now()))
	if err != nil {
		return nil, err
	}
	return leaderboard.Rank(rows, limit), nil
}

// Achievements рассчитывает достижения пользователя и сохраняет время впервые открытых.
func (s *Service) Achievements(ctx context.Context, userID int64) (leaderboard.Report, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return leaderboard.Report{}, err
	}

	stats, err := s.repo.UserStats(ctx, userID)
	if err != nil {
		return leaderboard.Report{}, err
	}

	unlocks, err := s.repo.ListAchievementUnlocks(ctx, userID)
	if err != nil {
		return leaderboard.Report{}, err
	}

	report, fresh := leaderboard.Evaluate(leaderboard.Catalog, stats, unlocks, s.now())
	if err := s.repo.SaveAchievementUnlocks(ctx, userID, fresh); err != nil {
		return leaderboard.Report{}, err
	}
	return report, nil
}
