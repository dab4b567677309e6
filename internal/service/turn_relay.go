package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LeventeLantos/turn-relay/internal/cache"
	"github.com/LeventeLantos/turn-relay/internal/client"
	"github.com/LeventeLantos/turn-relay/internal/metrics"
	"github.com/LeventeLantos/turn-relay/internal/model"
	"github.com/LeventeLantos/turn-relay/internal/render"
	"github.com/LeventeLantos/turn-relay/internal/repo"
)

const (
	DefaultBatchSize = 10
	DefaultClaimTTL  = 2 * time.Minute

	ReasonNoDestination = "no destination"
)

// ChatClient is the chat platform the relay posts turn messages to.
type ChatClient interface {
	ResolveDestination(ctx context.Context, dest model.Destination) (*client.Channel, error)
	Deliver(ctx context.Context, ch *client.Channel, msg render.Message) (string, error)
}

type RelayConfig struct {
	BatchSize int
	// ClaimTTL is how long a processing row stays claimed before another
	// poll may take it over.
	ClaimTTL time.Duration
}

// TurnRelay moves pending turn events from the mailbox to chat. One relay
// serves one deployment; tests construct as many as they need.
type TurnRelay struct {
	chat  ChatClient
	store repo.MailboxRepository
	cache cache.DeliveryCache
	log   *zap.Logger

	batchSize int
	claimTTL  time.Duration
	now       func() time.Time
}

func NewTurnRelay(chat ChatClient, store repo.MailboxRepository, dc cache.DeliveryCache, log *zap.Logger, cfg RelayConfig) (*TurnRelay, error) {
	if chat == nil {
		return nil, errors.New("chat client is required")
	}
	if store == nil {
		return nil, errors.New("mailbox store is required")
	}
	if dc == nil {
		dc = cache.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ClaimTTL <= 0 {
		cfg.ClaimTTL = DefaultClaimTTL
	}
	return &TurnRelay{
		chat:      chat,
		store:     store,
		cache:     dc,
		log:       log,
		batchSize: cfg.BatchSize,
		claimTTL:  cfg.ClaimTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

type PollResult struct {
	Claimed int
	Posted  int
	Failed  int
}

// PollOnce runs one poll cycle. Claimed rows are processed one at a time in
// created_at order and each ends posted or failed. Once rows are claimed the
// batch runs to completion even if ctx is canceled.
func (r *TurnRelay) PollOnce(ctx context.Context) PollResult {
	start := time.Now()
	defer func() { metrics.ObservePollDuration(time.Since(start)) }()

	rows, err := r.store.ClaimPending(ctx, model.TurnQueue, r.batchSize, r.now().Add(-r.claimTTL))
	if err != nil {
		r.log.Error("claim pending turn events", zap.Error(err))
		return PollResult{}
	}

	res := PollResult{Claimed: len(rows)}
	if len(rows) == 0 {
		return res
	}
	metrics.AddTurnsClaimed(len(rows))

	batchCtx := context.WithoutCancel(ctx)
	for _, row := range rows {
		if r.process(batchCtx, row) {
			res.Posted++
		} else {
			res.Failed++
		}
	}

	r.log.Info("turn relay batch processed",
		zap.Int("claimed", res.Claimed),
		zap.Int("posted", res.Posted),
		zap.Int("failed", res.Failed),
	)
	return res
}

// Tick adapts PollOnce to the scheduler.
func (r *TurnRelay) Tick(ctx context.Context) {
	r.PollOnce(ctx)
}

func (r *TurnRelay) process(ctx context.Context, row model.MailboxRow) bool {
	log := r.log.With(zap.Int64("row_id", row.ID), zap.String("pairing_id", row.PairingID))

	if !row.Pairing.HasDestination() {
		r.fail(ctx, log, row.ID, "no_destination", ReasonNoDestination)
		return false
	}

	if ref, ok, err := r.cache.LookupSent(ctx, model.TurnQueue, row.ID); err != nil {
		log.Warn("delivery cache lookup failed", zap.Error(err))
	} else if ok {
		metrics.IncTurnCacheHit()
		r.posted(ctx, log, row, ref)
		return true
	}

	msg := render.Render(model.ParseTurnEvent(row.EventType, row.Payload))

	ch, err := r.chat.ResolveDestination(ctx, row.Pairing.Destination)
	if err != nil {
		r.fail(ctx, log, row.ID, "resolve", err.Error())
		return false
	}
	if ch == nil {
		r.fail(ctx, log, row.ID, "no_destination", ReasonNoDestination)
		return false
	}

	ref, err := r.chat.Deliver(ctx, ch, msg)
	if err != nil {
		r.fail(ctx, log, row.ID, "deliver", err.Error())
		return false
	}

	if err := r.cache.StoreSent(ctx, model.TurnQueue, row.ID, ref, r.now()); err != nil {
		log.Warn("delivery cache store failed", zap.Error(err))
	}
	r.posted(ctx, log, row, ref)
	return true
}

func (r *TurnRelay) posted(ctx context.Context, log *zap.Logger, row model.MailboxRow, ref string) {
	if err := r.store.MarkSent(ctx, model.TurnQueue, row.ID, ref); err != nil {
		log.Error("mark turn event posted", zap.Error(err))
		return
	}
	metrics.IncTurnPosted()
	metrics.ObserveDeliveryLag(r.now().Sub(row.CreatedAt))
	log.Debug("turn event posted", zap.String("message_id", ref))
}

func (r *TurnRelay) fail(ctx context.Context, log *zap.Logger, id int64, cause, reason string) {
	metrics.IncTurnFailed(cause)
	log.Warn("turn event failed", zap.String("reason", reason))
	if err := r.store.MarkFailed(ctx, model.TurnQueue, id, reason); err != nil {
		log.Error("mark turn event failed", zap.Error(err))
	}
}

// ListTurns pages through turn events in the given status, newest first.
func (r *TurnRelay) ListTurns(ctx context.Context, status model.Status, limit, offset int) ([]model.MailboxRow, error) {
	return r.store.ListByStatus(ctx, model.TurnQueue, status, limit, offset)
}

// Resubmit queues a copy of a failed turn event. The failed row stays as it
// was.
func (r *TurnRelay) Resubmit(ctx context.Context, id int64) (model.MailboxRow, error) {
	row, err := r.store.Resubmit(ctx, model.TurnQueue, id)
	if err != nil {
		return model.MailboxRow{}, fmt.Errorf("resubmit turn event %d: %w", id, err)
	}
	r.log.Info("turn event resubmitted", zap.Int64("row_id", id), zap.Int64("new_row_id", row.ID))
	return row, nil
}
