// Package service runs the leaderboard-and-reward pipeline and serves its
// read side to the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/engageboard/internal/adapters/repository"
	"github.com/okian/engageboard/internal/adapters/source/x"
	"github.com/okian/engageboard/internal/domain/dedupe"
	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/types"
	"github.com/okian/engageboard/pkg/logger"
	"github.com/okian/engageboard/pkg/metrics"
)

// Defaults applied when no option overrides them.
const (
	DefaultQuery       = "@basedindia #indiaonchain"
	DefaultTopN        = 3
	DefaultRewardTotal = "0.003"

	defaultStatusLimit = 1024
	defaultDedupeSize  = 10_000
)

// Source fetches engagement records for a query window.
type Source interface {
	Fetch(ctx context.Context, q x.Query) ([]model.EngagementRecord, error)
}

// Ranker turns records into a ranked snapshot.
type Ranker interface {
	Build(records []model.EngagementRecord) model.Snapshot
}

// LeaderboardSigner produces a signed record for a leaderboard selection.
type LeaderboardSigner interface {
	Sign(ctx context.Context, entries []model.LeaderboardEntry) (model.SignedRecord, error)
}

// Anchorer stores a signature on-chain.
type Anchorer interface {
	Submit(ctx context.Context, rec model.SignedRecord) (string, error)
}

// RewardDistributor pays wallets one by one and reports every outcome.
type RewardDistributor interface {
	Distribute(ctx context.Context, total model.Amount, wallets []string) []model.TransferOutcome
}

// CommandQueue accepts commands for the runner.
type CommandQueue interface {
	Enqueue(ctx context.Context, cmd model.Command) error
	Len() int
}

// Dependencies are the collaborators every Service needs.
type Dependencies struct {
	Source      Source
	Ranker      Ranker
	Store       repository.Store
	Signer      LeaderboardSigner
	Anchor      Anchorer
	Distributor RewardDistributor
}

func (d Dependencies) validate() error {
	missing := ""
	switch {
	case d.Source == nil:
		missing = "source"
	case d.Ranker == nil:
		missing = "ranker"
	case d.Store == nil:
		missing = "store"
	case d.Signer == nil:
		missing = "signer"
	case d.Anchor == nil:
		missing = "anchor"
	case d.Distributor == nil:
		missing = "distributor"
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingDependency, missing)
}

// CycleResult is what a caller learns about one executed command. Signed
// and Bundle stay empty when the command stopped before reaching them.
type CycleResult struct {
	Command  model.Command
	Snapshot model.Snapshot
	Signed   model.SignedRecord
	Bundle   *model.DistributionBundle
	Failures []string
	Outcome  string
}

// Service orchestrates ScoreAndRank and SignAndDistribute.
type Service struct {
	deps Dependencies

	query         string
	lookback      time.Duration
	rewardTotal   model.Amount
	topN          int
	signerAddress string
	queue         CommandQueue
	deduper       dedupe.Deduper
	statusLimit   int
	now           func() time.Time
	newID         func() string

	// cycleMu serializes sign, anchor, distribute and record.
	cycleMu sync.Mutex

	mu              sync.RWMutex
	latest          model.Snapshot
	hasLatest       bool
	cyclesCompleted int
	lastBundleID    string
	statuses        map[string]types.CommandStatus
	statusOrder     []string

	logger logger.Logger
}

// New constructs a Service. All Dependencies are required.
func New(deps Dependencies, opts ...Option) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &Service{
		deps:        deps,
		query:       DefaultQuery,
		rewardTotal: model.MustParseAmount(DefaultRewardTotal),
		topN:        DefaultTopN,
		statusLimit: defaultStatusLimit,
		now:         time.Now,
		newID:       uuid.NewString,
		statuses:    make(map[string]types.CommandStatus),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(defaultDedupeSize))
	}
	return s, nil
}

// Execute runs cmd to completion. An error is returned only when the
// command was aborted or interrupted; partial failures are listed in
// CycleResult.Failures.
func (s *Service) Execute(ctx context.Context, cmd model.Command) (CycleResult, error) {
	start := time.Now()
	res := CycleResult{Command: cmd}
	s.setState(cmd, types.CommandRunning, "", "")

	var err error
	switch cmd.Kind {
	case model.CommandScoreAndRank:
		res.Snapshot, err = s.scoreAndRank(ctx, &res)
	case model.CommandSignAndDistribute:
		res.Snapshot, err = s.latestSnapshot(ctx)
		if err == nil {
			err = s.signAndDistribute(ctx, res.Snapshot, &res)
		}
	case model.CommandRunCycle:
		res.Snapshot, err = s.scoreAndRank(ctx, &res)
		if err == nil {
			err = s.signAndDistribute(ctx, res.Snapshot, &res)
		}
	default:
		err = fmt.Errorf("%w: %s", model.ErrUnknownCommand, cmd.Kind)
	}

	res.Outcome = outcome(res, err)
	metrics.RecordCycle(cmd.Kind.String(), res.Outcome, time.Since(start))

	bundleID := ""
	if res.Bundle != nil {
		bundleID = res.Bundle.ID
	}
	if err != nil {
		s.setState(cmd, types.CommandFailed, err.Error(), bundleID)
		s.logger.Error(ctx, "command aborted",
			logger.String("command", cmd.Kind.String()),
			logger.String("command_id", cmd.ID),
			logger.Error(err))
		return res, err
	}
	s.setState(cmd, types.CommandSucceeded, "", bundleID)
	s.logger.Info(ctx, "command completed",
		logger.String("command", cmd.Kind.String()),
		logger.String("command_id", cmd.ID),
		logger.String("outcome", res.Outcome),
		logger.Int("failures", len(res.Failures)))
	return res, nil
}

func outcome(res CycleResult, err error) string {
	switch {
	case err != nil && res.Bundle == nil:
		return metrics.OutcomeAborted
	case err != nil || len(res.Failures) > 0:
		return metrics.OutcomeDegraded
	default:
		return metrics.OutcomeCompleted
	}
}
