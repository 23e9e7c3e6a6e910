package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/engageboard/internal/adapters/repository"
	"github.com/okian/engageboard/internal/adapters/source/x"
	"github.com/okian/engageboard/internal/domain/leaderboard"
	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/pkg/logger"
	"github.com/okian/engageboard/pkg/metrics"
)

// Persistence operation labels.
const (
	opPutCurrent    = "put_current"
	opAppendHistory = "append_history"
	opRecordBundle  = "record_bundle"
)

func (s *Service) searchQuery() x.Query {
	q := x.Query{Text: s.query}
	if s.lookback > 0 {
		q.StartTime = s.now().Add(-s.lookback)
	}
	return q
}

// scoreAndRank fetches, ranks and stores a snapshot. A fetch failure aborts
// before anything becomes current; store failures do not.
func (s *Service) scoreAndRank(ctx context.Context, res *CycleResult) (model.Snapshot, error) {
	records, err := s.deps.Source.Fetch(ctx, s.searchQuery())
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("fetch engagement: %w", err)
	}

	snap := s.deps.Ranker.Build(records)

	s.mu.Lock()
	s.latest = snap
	s.hasLatest = true
	s.mu.Unlock()
	metrics.UpdateLeaderboardSize(snap.ParticipantCount())

	storeCtx := context.WithoutCancel(ctx)
	if err := s.deps.Store.PutCurrent(storeCtx, snap); err != nil {
		s.persistenceFailed(ctx, res, opPutCurrent, err)
	}
	if err := s.deps.Store.AppendHistory(storeCtx, snap, leaderboard.HistoryKey(snap.CapturedAt())); err != nil {
		s.persistenceFailed(ctx, res, opAppendHistory, err)
	}

	s.logger.Info(ctx, "leaderboard built",
		logger.Int("records", len(records)),
		logger.Int("participants", snap.ParticipantCount()))
	return snap, nil
}

// latestSnapshot prefers the snapshot built by this process and falls back
// to the stored current leaderboard.
func (s *Service) latestSnapshot(ctx context.Context) (model.Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.latest, s.hasLatest
	s.mu.RUnlock()
	if ok {
		return snap, nil
	}

	snap, err := s.deps.Store.Current(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.Snapshot{}, model.ErrNoSnapshot
	case err != nil:
		return model.Snapshot{}, fmt.Errorf("%w: load current leaderboard: %v", model.ErrPersistence, err)
	}
	return snap, nil
}

// signAndDistribute signs the top entries of snap, anchors the signature,
// pays the wallets and records the bundle. Nothing irreversible happens
// unless signing succeeded.
func (s *Service) signAndDistribute(ctx context.Context, snap model.Snapshot, res *CycleResult) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	selection := snap.Top(s.topN)
	if len(selection) == 0 {
		return fmt.Errorf("sign leaderboard: %w", model.ErrEmptyLeaderboard)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w before signing: %v", model.ErrCycleInterrupted, err)
	}

	signed, err := s.deps.Signer.Sign(ctx, selection)
	if err != nil {
		metrics.RecordSignFailure()
		return fmt.Errorf("sign leaderboard: %w", err)
	}
	res.Signed = signed

	ledgerCtx := context.WithoutCancel(ctx)
	anchorTx, err := s.deps.Anchor.Submit(ledgerCtx, signed)
	if err != nil {
		metrics.RecordAnchorFailure()
		res.Failures = append(res.Failures, fmt.Sprintf("anchor: %v", err))
		s.logger.Warn(ctx, "anchoring failed, distributing without anchor", logger.Error(err))
	}

	wallets := make([]string, len(selection))
	for i, e := range selection {
		wallets[i] = e.WalletAddress
	}
	outcomes := s.deps.Distributor.Distribute(ctx, s.rewardTotal, wallets)
	for _, o := range outcomes {
		if o.Status == model.TransferFailed {
			res.Failures = append(res.Failures, fmt.Sprintf("transfer %s: %s", o.WalletAddress, o.Reason))
		}
	}

	bundle, err := model.NewDistributionBundle(s.newID(), signed, anchorTx, outcomes, s.now())
	if err != nil {
		return fmt.Errorf("build bundle: %w", err)
	}
	res.Bundle = &bundle

	if err := s.deps.Store.Record(ledgerCtx, leaderboard.HistoryKey(bundle.CreatedAt), bundle); err != nil {
		s.persistenceFailed(ctx, res, opRecordBundle, err)
	}

	s.mu.Lock()
	s.cyclesCompleted++
	s.lastBundleID = bundle.ID
	s.mu.Unlock()

	s.logger.Info(ctx, "rewards distributed",
		logger.String("bundle_id", bundle.ID),
		logger.Bool("anchored", bundle.Anchored()),
		logger.Int("wallets", len(outcomes)),
		logger.Int("failed", bundle.Failures()))

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrCycleInterrupted, err)
	}
	return nil
}

func (s *Service) persistenceFailed(ctx context.Context, res *CycleResult, op string, err error) {
	metrics.RecordPersistenceError(op)
	res.Failures = append(res.Failures, fmt.Sprintf("%s: %v", op, fmt.Errorf("%w: %v", model.ErrPersistence, err)))
	s.logger.Warn(ctx, "persistence failed", logger.String("operation", op), logger.Error(err))
}
