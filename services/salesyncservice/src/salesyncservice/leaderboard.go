package salesyncservice

import (
	"context"
	"time"

	"github.com/alexkalak/presale_sync/common/models"
	"github.com/alexkalak/presale_sync/services/salesyncservice/src/salesyncservice/salesyncerrors"
)

func (s *saleSyncService) SelectDimension(ctx context.Context, dimension models.LeaderboardDimension) (models.LeaderboardView, error) {
	dimension, err := models.ParseLeaderboardDimension(string(dimension))
	if err != nil {
		return s.leaderboardView(), err
	}

	s.mu.Lock()
	limit := s.state.Leaderboard.Limit
	s.mu.Unlock()

	return s.fetchLeaderboard(ctx, dimension, limit), nil
}

func (s *saleSyncService) ExpandLeaderboard(ctx context.Context, count int) (models.LeaderboardView, error) {
	if count <= 0 {
		return s.leaderboardView(), salesyncerrors.ErrInvalidLimit
	}

	s.mu.Lock()
	dimension := s.state.Leaderboard.Dimension
	s.mu.Unlock()

	return s.fetchLeaderboard(ctx, dimension, count), nil
}

func (s *saleSyncService) RefreshLeaderboard(ctx context.Context) (models.LeaderboardView, error) {
	s.mu.Lock()
	dimension, limit := s.state.Leaderboard.Dimension, s.state.Leaderboard.Limit
	s.mu.Unlock()

	return s.fetchLeaderboard(ctx, dimension, limit), nil
}

// fetchLeaderboard tags the request with the next sequence number and applies
// the response only if no newer request was issued meanwhile. While loading,
// rows already fetched for the same dimension stay visible. Rows of another
// dimension are never shown.
func (s *saleSyncService) fetchLeaderboard(ctx context.Context, dimension models.LeaderboardDimension, limit int) models.LeaderboardView {
	s.mu.Lock()
	s.leaderboardSeq++
	seq := s.leaderboardSeq

	view := &s.state.Leaderboard
	if view.Dimension != dimension {
		view.Rows = s.rowsByDim[dimension]
	}
	view.Dimension = dimension
	view.Limit = limit
	view.Loading = true
	s.publishLocked()
	s.mu.Unlock()

	rows, err := s.rpcClient.GetTopReferrers(ctx, dimension, limit)
	s.metrics.read("top_referrers", err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.leaderboardSeq {
		s.metrics.staleDiscarded.Inc()
		s.logger.Debug().
			Uint64("seq", seq).
			Uint64("latest_seq", s.leaderboardSeq).
			Str("dimension", string(dimension)).
			Msg("dropping stale leaderboard response")
		return s.state.Clone().Leaderboard
	}

	view.Loading = false
	if err != nil {
		s.logger.Warn().Err(err).Str("dimension", string(dimension)).Msg("leaderboard refresh failed; keeping previous rows")
	} else {
		s.rowsByDim[dimension] = rows
		view.Rows = rows
		view.UpdatedAt = time.Now().Unix()
	}
	s.publishLocked()

	return s.state.Clone().Leaderboard
}

func (s *saleSyncService) leaderboardView() models.LeaderboardView {
	return s.Snapshot().Leaderboard
}
