package service

import (
	"context"

	"github.com/okian/engageboard/internal/adapters/repository"
	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/types"
)

// Leaderboard returns at most limit entries of the latest snapshot.
func (s *Service) Leaderboard(ctx context.Context, limit int) (types.Leaderboard, error) {
	if err := repository.ValidateLimit(limit); err != nil {
		return types.Leaderboard{}, err
	}
	snap, err := s.latestSnapshot(ctx)
	if err != nil {
		return types.Leaderboard{}, err
	}
	return types.FromSnapshot(snap, limit), nil
}

// Rank returns the best entry of handle in the latest snapshot.
func (s *Service) Rank(ctx context.Context, handle string) (types.Entry, error) {
	snap, err := s.latestSnapshot(ctx)
	if err != nil {
		return types.Entry{}, err
	}
	e, ok := snap.Lookup(handle)
	if !ok {
		return types.Entry{}, ErrHandleNotFound
	}
	return types.FromEntry(e), nil
}

// History returns archived snapshots, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]types.HistoryItem, error) {
	items, err := s.deps.Store.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.HistoryItem, len(items))
	for i, it := range items {
		out[i] = types.HistoryItem{
			Key:               it.Key,
			TotalParticipants: it.Snapshot.ParticipantCount(),
			CapturedAt:        it.Snapshot.CapturedAt(),
			Entries:           types.FromEntries(it.Snapshot.Entries()),
		}
	}
	return out, nil
}

// Bundles returns recorded distribution bundles, newest first.
func (s *Service) Bundles(ctx context.Context, limit int) ([]model.DistributionBundle, error) {
	return s.deps.Store.Bundles(ctx, limit)
}

// Stats returns an overview of the service state.
func (s *Service) Stats(_ context.Context) types.Stats {
	st := types.Stats{
		SignerAddress:   s.signerAddress,
		TopN:            s.topN,
		RewardTotal:     s.rewardTotal.String(),
		TrackedRequests: s.deduper.Size(),
	}
	if s.queue != nil {
		st.QueueLength = s.queue.Len()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hasLatest {
		st.TotalParticipants = s.latest.ParticipantCount()
		st.LastUpdated = s.latest.CapturedAt()
	}
	st.CyclesCompleted = s.cyclesCompleted
	st.LastBundleID = s.lastBundleID
	return st
}
