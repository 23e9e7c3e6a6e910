package api

import (
	"context"
	"net/http"

	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/types"
)

// HistoryDependencies exposes archived snapshots and bundles.
type HistoryDependencies interface {
	History(ctx context.Context, limit int) ([]types.HistoryItem, error)
	Bundles(ctx context.Context, limit int) ([]model.DistributionBundle, error)
}

// HistoryHandler serves the audit trail.
type HistoryHandler struct {
	deps     HistoryDependencies
	maxLimit int
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies, maxLimit int) *HistoryHandler {
	return &HistoryHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetHistory handles GET /history?limit=N requests.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_history"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n, err := parseLimit(r, DefaultLimit, h.maxLimit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	items, err := h.deps.History(r.Context(), n)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if items == nil {
		items = []types.HistoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleGetBundles handles GET /bundles?limit=N requests.
func (h *HistoryHandler) HandleGetBundles(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_bundles"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n, err := parseLimit(r, DefaultLimit, h.maxLimit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	bundles, err := h.deps.Bundles(r.Context(), n)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if bundles == nil {
		bundles = []model.DistributionBundle{}
	}
	writeJSON(w, http.StatusOK, bundles)
}
