// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/engageboard/internal/adapters/mq/queue"
	"github.com/okian/engageboard/internal/adapters/repository"
	service "github.com/okian/engageboard/internal/app"
	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/types"
)

// Default limits for list endpoints.
const (
	DefaultLimit = 10
	DefaultMax   = 100
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeaderboardDependencies
	RankDependencies
	HistoryDependencies
	CommandDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	commandsHandler    *CommandsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	historyHandler     *HistoryHandler
}

// NewServer creates a new API server with all handlers. maxLimit bounds
// every ?limit= parameter.
func NewServer(deps Dependencies, maxLimit int) *Server {
	if maxLimit < 1 {
		maxLimit = DefaultMax
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		commandsHandler:    NewCommandsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		historyHandler:     NewHistoryHandler(deps, maxLimit),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/commands", MetricsMiddleware(s.commandsHandler.HandlePostCommand, "commands"))
	mux.HandleFunc("/commands/", MetricsMiddleware(s.commandsHandler.HandleGetCommand, "command_status"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/history", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
	mux.HandleFunc("/bundles", MetricsMiddleware(s.historyHandler.HandleGetBundles, "bundles"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err onto a status code and error code.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, model.ErrUnknownCommand):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound),
		errors.Is(err, service.ErrHandleNotFound),
		errors.Is(err, model.ErrNoSnapshot):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBackpressure),
		errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, queue.ErrClosed),
		errors.Is(err, service.ErrQueueUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// Compile-time check that the pipeline service satisfies the handler contract.
var _ Dependencies = (*service.Service)(nil)

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry
