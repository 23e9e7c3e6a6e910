package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/types"
)

const commandSource = "http"

// CommandDependencies submits commands and reports their status.
type CommandDependencies interface {
	Submit(ctx context.Context, kind model.CommandKind, requestID, source string) (types.CommandStatus, bool, error)
	Status(id string) (types.CommandStatus, bool)
}

// commandRequest is the body of POST /commands.
type commandRequest struct {
	Kind      string `json:"kind"`
	RequestID string `json:"request_id"`
}

func (c commandRequest) validate() (model.CommandKind, error) {
	if strings.TrimSpace(c.Kind) == "" {
		return 0, errors.New("missing kind")
	}
	return model.ParseCommandKind(c.Kind)
}

type ackResponse struct {
	Status    string              `json:"status"`
	Duplicate bool                `json:"duplicate"`
	Command   types.CommandStatus `json:"command"`
}

// CommandsHandler handles command requests.
type CommandsHandler struct {
	deps CommandDependencies
}

// NewCommandsHandler creates a new commands handler.
func NewCommandsHandler(deps CommandDependencies) *CommandsHandler {
	return &CommandsHandler{deps: deps}
}

// HandlePostCommand handles POST /commands requests. A repeated request_id
// is acknowledged without running the command again.
func (h *CommandsHandler) HandlePostCommand(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_command"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	kind, err := req.validate()
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	st, duplicate, err := h.deps.Submit(r.Context(), kind, req.RequestID, commandSource)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, Command: st})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Command: st})
}

// HandleGetCommand handles GET /commands/{id} requests.
func (h *CommandsHandler) HandleGetCommand(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_command"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, ok := pathParam(r, "/commands/")
	if !ok {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	st, ok := h.deps.Status(id)
	if !ok {
		writeFailure(w, NewKind(op, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
