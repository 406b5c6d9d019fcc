package worker

import (
	"context"
	"fmt"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"

	"github.com/airenas/clipcheck/internal/pkg/api"
	"github.com/airenas/clipcheck/internal/pkg/messages"
	"github.com/airenas/clipcheck/internal/pkg/persistence"
	"github.com/airenas/clipcheck/internal/pkg/status"
)

// SessionUpdater is the store surface wrapped by NotifyingStore
type SessionUpdater interface {
	UpdateStage(ctx context.Context, id string, stage status.Stage, progress float64) error
	MarkCompleted(ctx context.Context, id string, results *api.Result) error
	MarkFailed(ctx context.Context, id string, errData *persistence.ErrorData) error
}

// NotifyingStore decorates a session store with status change events,
// a push message goes out after every successfully persisted update
type NotifyingStore struct {
	store  SessionUpdater
	sender MsgSender
}

// NewNotifyingStore creates the decorator
func NewNotifyingStore(store SessionUpdater, sender MsgSender) (*NotifyingStore, error) {
	if store == nil {
		return nil, fmt.Errorf("no store")
	}
	if sender == nil {
		return nil, fmt.Errorf("no msg sender")
	}
	return &NotifyingStore{store: store, sender: sender}, nil
}

func (ns *NotifyingStore) UpdateStage(ctx context.Context, id string, stage status.Stage, progress float64) error {
	if err := ns.store.UpdateStage(ctx, id, stage, progress); err != nil {
		return err
	}
	ns.notify(ctx, id)
	return nil
}

func (ns *NotifyingStore) MarkCompleted(ctx context.Context, id string, results *api.Result) error {
	if err := ns.store.MarkCompleted(ctx, id, results); err != nil {
		return err
	}
	ns.notify(ctx, id)
	return nil
}

func (ns *NotifyingStore) MarkFailed(ctx context.Context, id string, errData *persistence.ErrorData) error {
	if err := ns.store.MarkFailed(ctx, id, errData); err != nil {
		return err
	}
	ns.notify(ctx, id)
	return nil
}

// notify is best effort, a lost push must not fail the run
func (ns *NotifyingStore) notify(ctx context.Context, id string) {
	err := ns.sender.SendMessage(ctx, &messages.VerifyMessage{
		QueueMessage: amessages.QueueMessage{ID: id}}, messages.StatusChange, messages.StatusChange)
	if err != nil {
		goapp.Log.Error().Err(err).Str("ID", id).Msg("can't send status change msg")
	}
}
