package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/engageboard/internal/domain/model"
	"github.com/okian/engageboard/internal/domain/types"
	"github.com/okian/engageboard/pkg/logger"
	"github.com/okian/engageboard/pkg/metrics"
)

// Submit queues a command for the runner. A request id seen before returns
// the existing status with duplicate set and queues nothing. An empty id
// gets a fresh one.
func (s *Service) Submit(ctx context.Context, kind model.CommandKind, requestID, source string) (st types.CommandStatus, duplicate bool, err error) {
	if !kind.Valid() {
		return types.CommandStatus{}, false, fmt.Errorf("%w: %s", model.ErrUnknownCommand, kind)
	}
	if s.queue == nil {
		return types.CommandStatus{}, false, ErrQueueUnavailable
	}

	id := strings.TrimSpace(requestID)
	if id == "" {
		id = s.newID()
	}

	if s.deduper.SeenAndRecord(ctx, id) {
		metrics.RecordCommand(source, "duplicate")
		if existing, ok := s.Status(id); ok {
			return existing, true, nil
		}
		return types.CommandStatus{Command: model.Command{ID: id, Kind: kind, Source: source}}, true, nil
	}

	cmd := model.Command{ID: id, Kind: kind, Source: source, SubmittedAt: s.now()}
	st = s.setState(cmd, types.CommandPending, "", "")

	if err := s.queue.Enqueue(ctx, cmd); err != nil {
		s.deduper.Unrecord(ctx, id)
		s.forget(id)
		metrics.RecordCommand(source, "rejected")
		s.logger.Warn(ctx, "command rejected",
			logger.String("command_id", id),
			logger.String("kind", kind.String()),
			logger.Error(err))
		return types.CommandStatus{}, false, fmt.Errorf("enqueue %s: %w", kind, err)
	}

	metrics.RecordCommand(source, "accepted")
	return st, false, nil
}

// Status returns the last known state of a command.
func (s *Service) Status(id string) (types.CommandStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[id]
	return st, ok
}

func (s *Service) setState(cmd model.Command, state types.CommandState, errMsg, bundleID string) types.CommandStatus {
	st := types.CommandStatus{
		Command:   cmd,
		State:     state,
		Error:     errMsg,
		BundleID:  bundleID,
		UpdatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.statuses[cmd.ID]; !ok {
		s.statusOrder = append(s.statusOrder, cmd.ID)
		for len(s.statusOrder) > s.statusLimit {
			delete(s.statuses, s.statusOrder[0])
			s.statusOrder = s.statusOrder[1:]
		}
	}
	s.statuses[cmd.ID] = st
	return st
}

func (s *Service) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, id)
	for i, v := range s.statusOrder {
		if v == id {
			s.statusOrder = append(s.statusOrder[:i], s.statusOrder[i+1:]...)
			break
		}
	}
}
