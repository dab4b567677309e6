package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/LeventeLantos/turn-relay/internal/dice"
	"github.com/LeventeLantos/turn-relay/internal/metrics"
	"github.com/LeventeLantos/turn-relay/internal/model"
	"github.com/LeventeLantos/turn-relay/internal/notify"
	"github.com/LeventeLantos/turn-relay/internal/repo"
)

var (
	ErrInvalidRoll  = errors.New("invalid roll")
	ErrRateLimited  = errors.New("rate limited")
	ErrNotConnected = errors.New("not connected")
)

// CommandError is returned for every rejected command. Reason is safe to show
// to the caller; errors.Is matches Kind.
type CommandError struct {
	Kind   error
	Reason string
}

func (e *CommandError) Error() string { return e.Reason }

func (e *CommandError) Unwrap() error { return e.Kind }

type CommandStore interface {
	Insert(ctx context.Context, q model.Queue, row model.MailboxRow) (model.MailboxRow, error)
}

type ClientResolver interface {
	ResolveByClientIdentity(ctx context.Context, clientIdentity string) (model.Pairing, error)
}

type RollHereRequest struct {
	CallerIdentity string
	Notation       string
	DisplayName    string
	ActorName      string
	CheckType      *string
}

// Ack identifies a queued command.
type Ack struct {
	CommandID     int64  `json:"command_id"`
	CorrelationID string `json:"correlation_id"`
}

type CommandConfig struct {
	// RatePerMinute and Burst bound how fast one caller may queue commands.
	// A zero RatePerMinute disables the limit.
	RatePerMinute float64
	Burst         int
}

// CommandService queues commands for remote clients.
type CommandService struct {
	store    CommandStore
	pairings ClientResolver
	notifier notify.Notifier
	log      *zap.Logger

	limiter *callerLimiter

	now   func() time.Time
	newID func() string
}

func NewCommandService(store CommandStore, pairings ClientResolver, notifier notify.Notifier, log *zap.Logger, cfg CommandConfig) *CommandService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RatePerMinute > 0 {
		limit = rate.Limit(cfg.RatePerMinute / 60)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &CommandService{
		store:    store,
		pairings: pairings,
		notifier: notifier,
		log:      log,
		limiter:  newCallerLimiter(limit, burst),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
}

// EnqueueRollHere asks the caller's connected client to roll req.Notation.
// Rejected requests write nothing.
func (s *CommandService) EnqueueRollHere(ctx context.Context, req RollHereRequest) (Ack, error) {
	notation := strings.TrimSpace(req.Notation)
	n, err := dice.ParseAndValidate(notation)
	if err != nil {
		return Ack{}, s.reject("invalid_roll", ErrInvalidRoll, err.Error())
	}

	pairing, err := s.pairings.ResolveByClientIdentity(ctx, req.CallerIdentity)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Ack{}, s.reject("not_connected", ErrNotConnected, ErrNotConnected.Error())
		}
		return Ack{}, fmt.Errorf("resolve caller pairing: %w", err)
	}

	// Only paired callers get a bucket.
	if !s.limiter.allow(req.CallerIdentity, s.now()) {
		return Ack{}, s.reject("rate_limited", ErrRateLimited, "too many commands, slow down")
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = n.String()
	}
	payload, err := json.Marshal(model.CommandEvent{
		CommandKind: model.CommandRollHere,
		RollString:  n.String(),
		Computed: model.ComputedRoll{
			Count:    n.Count,
			Sides:    n.Sides,
			Modifier: n.Modifier,
		},
		DisplayName: displayName,
		ActorName:   req.ActorName,
		CheckType:   req.CheckType,
	})
	if err != nil {
		return Ack{}, fmt.Errorf("encode command payload: %w", err)
	}

	corr := s.newID()
	row, err := s.store.Insert(ctx, model.CommandQueue, model.MailboxRow{
		PairingID:     pairing.ID,
		EventType:     model.CommandRollHere,
		Payload:       payload,
		CorrelationID: &corr,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return Ack{}, fmt.Errorf("queue roll command: %w", err)
	}
	metrics.IncCommandEnqueued()

	s.announce(ctx, row, pairing.ID, corr)

	s.log.Info("roll command queued",
		zap.Int64("command_id", row.ID),
		zap.String("correlation_id", corr),
		zap.String("pairing_id", pairing.ID),
		zap.String("roll", n.String()),
	)
	return Ack{CommandID: row.ID, CorrelationID: corr}, nil
}

func (s *CommandService) announce(ctx context.Context, row model.MailboxRow, pairingID, corr string) {
	err := s.notifier.Notify(ctx, notify.CommandAvailable{
		CommandID:     row.ID,
		CorrelationID: corr,
		PairingID:     pairingID,
		CommandKind:   row.EventType,
		CreatedAt:     row.CreatedAt,
	})
	if err != nil {
		metrics.IncNotifyError("command")
		s.log.Warn("command notification failed", zap.Int64("command_id", row.ID), zap.Error(err))
	}
}

func (s *CommandService) reject(metric string, kind error, reason string) error {
	metrics.IncCommandRejected(metric)
	return &CommandError{Kind: kind, Reason: reason}
}
