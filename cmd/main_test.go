package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/engageboard/internal/adapters/ledger"
	"github.com/okian/engageboard/internal/adapters/mq/queue"
	"github.com/okian/engageboard/internal/adapters/mq/worker"
	"github.com/okian/engageboard/internal/adapters/repository"
	"github.com/okian/engageboard/internal/adapters/repository/sqlite"
	"github.com/okian/engageboard/internal/adapters/source/x"
	"github.com/okian/engageboard/internal/config"
	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/types"
	"github.com/okian/engageboard/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

const (
	aliceWallet = "0x1111111111111111111111111111111111111111"
	bobWallet   = "0x2222222222222222222222222222222222222222"
	anchorAddr  = "0x3333333333333333333333333333333333333333"
)

const recordedSearch = `{
  "data": [
    {"id": "1", "author_id": "u1", "text": "gm", "public_metrics": {"like_count": 5, "retweet_count": 2}},
    {"id": "2", "author_id": "u2", "text": "hi", "public_metrics": {"like_count": 1}}
  ],
  "includes": {"users": [{"id": "u1", "username": "alice"}, {"id": "u2", "username": "bob"}]},
  "meta": {"result_count": 2}
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	replay := filepath.Join(dir, "search.json")
	if err := os.WriteFile(replay, []byte(recordedSearch), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.New(context.Background())
	cfg.ReplayPath = replay
	cfg.DBPath = ""
	cfg.AnchorContract = anchorAddr
	cfg.Wallets = map[string]string{"alice": aliceWallet, "bob": bobWallet}
	return cfg
}

func TestBuild(t *testing.T) {
	convey.Convey("Given an in-memory configuration", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)
		convey.So(cfg.Validate(), convey.ShouldBeNil)

		convey.Convey("When the application is built", func() {
			a, err := build(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			defer a.close(logger.Nop())

			convey.Convey("Then every component is wired", func() {
				convey.So(a.svc, convey.ShouldNotBeNil)
				convey.So(a.runner, convey.ShouldNotBeNil)
				convey.So(a.queue, convey.ShouldNotBeNil)
				convey.So(a.account.Address(), convey.ShouldStartWith, "0x")
				convey.So(a.sched, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a schedule is configured", func() {
			cfg.Schedule = "0 9 * * *"
			cfg.Timezone = "Asia/Kolkata"
			a, err := build(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			defer a.close(logger.Nop())

			convey.Convey("Then the daily cycle job is registered", func() {
				convey.So(a.sched, convey.ShouldNotBeNil)
				jobs := a.sched.Jobs()
				convey.So(jobs, convey.ShouldHaveLength, 1)
				convey.So(jobs[0].Name, convey.ShouldEqual, dailyCycleJob)
			})
		})

		convey.Convey("When the schedule is malformed", func() {
			cfg.Schedule = "every day"
			_, err := build(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the timezone is unknown", func() {
			cfg.Schedule = "0 9 * * *"
			cfg.Timezone = "Mars/Olympus"
			_, err := build(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestRunCycleEndToEnd(t *testing.T) {
	convey.Convey("Given a built application with its runner started", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cfg := testConfig(t)
		a, err := build(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		defer a.close(logger.Nop())
		go a.runner.Run(ctx)

		convey.Convey("When a run_cycle command is submitted", func() {
			st, dup, err := a.svc.Submit(ctx, model.CommandRunCycle, "req-1", "test")
			convey.So(err, convey.ShouldBeNil)
			convey.So(dup, convey.ShouldBeFalse)

			var final types.CommandStatus
			deadline := time.Now().Add(5 * time.Second)
			for time.Now().Before(deadline) {
				final, _ = a.svc.Status(st.Command.ID)
				if final.State == types.CommandSucceeded || final.State == types.CommandFailed {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}

			convey.Convey("Then the cycle completes and pays both wallets", func() {
				convey.So(final.State, convey.ShouldEqual, types.CommandSucceeded)
				convey.So(final.BundleID, convey.ShouldNotBeEmpty)

				board, err := a.svc.Leaderboard(ctx, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(board.Entries, convey.ShouldHaveLength, 2)
				convey.So(board.Entries[0].Handle, convey.ShouldEqual, "alice")

				mem, ok := a.account.(*ledger.Memory)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(mem.Received(aliceWallet).String(), convey.ShouldEqual, "0.001500")
				convey.So(mem.Received(bobWallet).String(), convey.ShouldEqual, "0.001500")

				bundles, err := a.svc.Bundles(ctx, 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(bundles, convey.ShouldHaveLength, 1)
				convey.So(bundles[0].Anchored(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestComponentFactories(t *testing.T) {
	convey.Convey("Given component factories", t, func() {
		ctx := context.Background()
		cfg := testConfig(t)

		convey.Convey("When db_path is empty", func() {
			st, closeFn, err := newStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			_, isMemory := st.(*repository.Memory)
			convey.So(isMemory, convey.ShouldBeTrue)
			convey.So(closeFn(), convey.ShouldBeNil)
		})

		convey.Convey("When db_path names a file", func() {
			cfg.DBPath = filepath.Join(t.TempDir(), "nested", "engageboard.db")
			st, closeFn, err := newStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			_, isSQLite := st.(*sqlite.Store)
			convey.So(isSQLite, convey.ShouldBeTrue)
			convey.So(closeFn(), convey.ShouldBeNil)
		})

		convey.Convey("When a replay file is configured", func() {
			_, isReplay := newSource(cfg, logger.Nop()).(*x.Replay)
			convey.So(isReplay, convey.ShouldBeTrue)
		})

		convey.Convey("When no replay file is configured", func() {
			cfg.ReplayPath = ""
			cfg.BearerToken = "token"
			_, isClient := newSource(cfg, logger.Nop()).(*x.Client)
			convey.So(isClient, convey.ShouldBeTrue)
		})

		convey.Convey("When the memory ledger is given a bad key", func() {
			cfg.LedgerPrivateKey = "not-hex"
			_, _, err := newAccount(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the memory ledger starts funded", func() {
			acc, _, err := newAccount(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			bal, err := acc.Balance(ctx, cfg.LedgerAsset)
			convey.So(err, convey.ShouldBeNil)
			convey.So(bal.String(), convey.ShouldEqual, "1.000000")
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the periodic metrics updaters", t, func() {
		cfg := testConfig(t)
		a, err := build(context.Background(), cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		defer a.close(logger.Nop())

		convey.Convey("When they run until their context expires", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			convey.So(func() {
				startSystemMetricsUpdater(ctx)
				startServiceMetricsUpdater(ctx, a.svc)
				updateSystemMetrics()
				updateServiceMetrics(ctx, a.svc)
			}, convey.ShouldNotPanic)
		})
	})
}

func TestDrainRunner(t *testing.T) {
	convey.Convey("Given a runner executing a command slower than the shutdown timeout", t, func() {
		q := queue.NewInMemoryQueue()
		var finished atomic.Bool
		started := make(chan struct{})
		r := worker.NewRunner(q, worker.ExecutorFunc(func(context.Context, model.Command) error {
			close(started)
			time.Sleep(300 * time.Millisecond)
			finished.Store(true)
			return nil
		}))
		convey.So(q.Enqueue(context.Background(), model.Command{ID: "slow", Kind: model.CommandRunCycle}), convey.ShouldBeNil)

		runCtx, cancelRun := context.WithCancel(context.Background())
		go r.Run(runCtx)
		<-started
		cancelRun()

		convey.Convey("When draining with a 50ms deadline", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			drainRunner(ctx, r, logger.Nop())

			convey.Convey("Then it returns only after the command finished", func() {
				convey.So(finished.Load(), convey.ShouldBeTrue)
				select {
				case <-r.Done():
				default:
					t.Fatal("runner still running")
				}
			})
		})
	})
}
