package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/engageboard/internal/adapters/http/api"
	"github.com/okian/engageboard/internal/adapters/http/swagger"
	"github.com/okian/engageboard/internal/adapters/ledger"
	"github.com/okian/engageboard/internal/adapters/ledger/evm"
	"github.com/okian/engageboard/internal/adapters/mq/queue"
	"github.com/okian/engageboard/internal/adapters/mq/worker"
	"github.com/okian/engageboard/internal/adapters/repository"
	"github.com/okian/engageboard/internal/adapters/repository/sqlite"
	"github.com/okian/engageboard/internal/adapters/source/x"
	service "github.com/okian/engageboard/internal/app"
	"github.com/okian/engageboard/internal/config"
	"github.com/okian/engageboard/internal/domain/dedupe"
	"github.com/okian/engageboard/internal/domain/leaderboard"
	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/provenance"
	"github.com/okian/engageboard/internal/domain/reward"
	"github.com/okian/engageboard/internal/scheduler"
	"github.com/okian/engageboard/pkg/logger"
	"github.com/okian/engageboard/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
	dailyCycleJob             = "daily-cycle"
)

func main() {
	// Our own registry carries the process metrics we care about.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, loggerInstance); err != nil {
		loggerInstance.Error(ctx, "engageboard stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the application, serves until ctx is cancelled and then shuts
// everything down in dependency order.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close(log)

	go a.runner.Run(ctx)
	if a.sched != nil {
		a.sched.Start()
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, a.svc)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(a.svc, cfg.MaxLimit).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("signer", a.account.Address()),
			logger.String("ledger_mode", cfg.LedgerMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if a.sched != nil {
		select {
		case <-a.sched.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn(ctx, "scheduler did not stop in time")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	_ = a.queue.Close()
	drainRunner(shutdownCtx, a.runner, log)

	log.Info(ctx, "server stopped")
	return runErr
}

// drainRunner stops the runner and blocks until the command in flight has
// returned, even past ctx's deadline. The ledger and store are closed only
// afterwards so a pending transfer confirmation is never cut off.
func drainRunner(ctx context.Context, r *worker.Runner, log logger.Logger) {
	if err := r.Shutdown(ctx); err != nil {
		log.Warn(context.Background(), "waiting for in-flight command past shutdown timeout", logger.Error(err))
		<-r.Done()
	}
}

// application holds the wired components and what must be released on exit.
type application struct {
	account ledger.Account
	svc     *service.Service
	queue   *queue.InMemoryQueue
	runner  *worker.Runner
	sched   *scheduler.Scheduler
	closers []func() error
}

func (a *application) close(log logger.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn(context.Background(), "close failed", logger.Error(err))
		}
	}
}

// build constructs every component from cfg. Nothing is started.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	a := &application{}
	fail := func(err error) (*application, error) {
		a.close(log)
		return nil, err
	}

	account, closeAccount, err := newAccount(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	a.account = account
	a.closers = append(a.closers, closeAccount)

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, closeStore)

	rewardTotal, err := cfg.RewardAmount()
	if err != nil {
		return fail(err)
	}
	minBalance, err := model.ParseAmount(cfg.MinBalance)
	if err != nil {
		return fail(err)
	}

	a.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.CommandQueueSize))
	svc, err := service.New(service.Dependencies{
		Source: newSource(cfg, log),
		Ranker: leaderboard.NewBuilder(),
		Store:  store,
		Signer: provenance.NewSigner(account, provenance.WithSignerLogger(log.Named("signer"))),
		Anchor: provenance.NewAnchor(account, cfg.AnchorContract, provenance.WithAnchorLogger(log.Named("anchor"))),
		Distributor: reward.NewDistributor(account,
			reward.WithAsset(cfg.LedgerAsset),
			reward.WithMinBalance(minBalance),
			reward.WithLogger(log.Named("reward"))),
	},
		service.WithQuery(cfg.Query),
		service.WithLookback(cfg.Lookback()),
		service.WithRewardTotal(rewardTotal),
		service.WithTopN(cfg.TopN),
		service.WithSignerAddress(account.Address()),
		service.WithQueue(a.queue),
		service.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.IdempotencyCacheSize))),
		service.WithLogger(log.Named("service")),
	)
	if err != nil {
		return fail(err)
	}
	a.svc = svc

	a.runner = worker.NewRunner(a.queue, worker.ExecutorFunc(func(ctx context.Context, cmd model.Command) error {
		_, err := svc.Execute(ctx, cmd)
		return err
	}), worker.WithName("pipeline"), worker.WithLogger(log))

	if cfg.Schedule != "" {
		sched, err := scheduler.New(cfg.Timezone, scheduler.WithLogger(log.Named("scheduler")))
		if err != nil {
			return fail(err)
		}
		if err := sched.AddJob(dailyCycleJob, cfg.Schedule, scheduler.SubmitJob(svc, model.CommandRunCycle, nil)); err != nil {
			return fail(err)
		}
		a.sched = sched
	}
	return a, nil
}

// newAccount opens the ledger account selected by ledger_mode.
func newAccount(ctx context.Context, cfg *config.Config, log logger.Logger) (ledger.Account, func() error, error) {
	switch cfg.LedgerMode {
	case config.LedgerEVM:
		acc, err := evm.Open(ctx, evm.Config{
			RPCURL:         cfg.LedgerRPCURL,
			PrivateKey:     cfg.LedgerPrivateKey,
			Asset:          cfg.LedgerAsset,
			TokenAddress:   cfg.LedgerTokenAddress,
			TokenDecimals:  cfg.LedgerTokenDecimals,
			FaucetURL:      cfg.LedgerFaucetURL,
			ConfirmTimeout: cfg.LedgerConfirmTimeout(),
		}, evm.WithLogger(log.Named("ledger")))
		if err != nil {
			return nil, nil, err
		}
		return acc, func() error { acc.Close(); return nil }, nil
	default:
		balance, err := model.ParseAmount(cfg.LedgerMemoryBalance)
		if err != nil {
			return nil, nil, err
		}
		drip, err := model.ParseAmount(cfg.LedgerMemoryFaucetDrip)
		if err != nil {
			return nil, nil, err
		}
		acc, err := ledger.NewMemory(
			ledger.WithPrivateKey(cfg.LedgerPrivateKey),
			ledger.WithAsset(cfg.LedgerAsset),
			ledger.WithBalance(cfg.LedgerAsset, balance),
			ledger.WithFaucetDrip(drip),
			ledger.WithContract(cfg.AnchorContract),
		)
		if err != nil {
			return nil, nil, err
		}
		return acc, func() error { return nil }, nil
	}
}

// newStore opens sqlite at db_path, or keeps state in memory when it is empty.
func newStore(ctx context.Context, cfg *config.Config) (repository.Store, func() error, error) {
	if cfg.DBPath == "" {
		return repository.NewMemory(), func() error { return nil }, nil
	}
	st, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

// newSource returns the search client, or a replay of a recorded response
// when replay_path is set.
func newSource(cfg *config.Config, log logger.Logger) service.Source {
	wallets := x.NewWalletResolver(cfg.Wallets, cfg.DefaultWallet)
	if cfg.ReplayPath != "" {
		return x.NewReplay(cfg.ReplayPath, wallets, log.Named("replay"))
	}
	return x.NewClient(cfg.BearerToken,
		x.WithSearchURL(cfg.SearchURL),
		x.WithRequestsPerSecond(cfg.SearchRequestsPerSecond),
		x.WithCooldown(cfg.RateLimitCooldown()),
		x.WithMaxRateLimitRetries(cfg.MaxRateLimitRetries),
		x.WithMaxResults(cfg.MaxResults),
		x.WithMaxPages(cfg.MaxPages),
		x.WithWallets(wallets),
		x.WithLogger(log.Named("x")),
	)
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateServiceMetrics(ctx context.Context, svc *service.Service) {
	stats := svc.Stats(ctx)
	metrics.UpdateCommandQueueSize(stats.QueueLength)
	metrics.UpdateLeaderboardSize(stats.TotalParticipants)
}
