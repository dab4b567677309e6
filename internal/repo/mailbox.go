package repo

import (
	"context"
	"time"

	"github.com/LeventeLantos/turn-relay/internal/model"
)

// MailboxRepository is the polled store behind both relay directions.
type MailboxRepository interface {
	// ClaimPending atomically moves up to limit pending rows (and processing
	// rows claimed before staleBefore) to processing, oldest first, and
	// returns them joined with their connected pairing.
	ClaimPending(ctx context.Context, q model.Queue, limit int, staleBefore time.Time) ([]model.MailboxRow, error)
	// MarkSent records the success terminal state for the queue with ref as
	// terminal_ref. Rows already terminal are left untouched.
	MarkSent(ctx context.Context, q model.Queue, id int64, ref string) error
	MarkFailed(ctx context.Context, q model.Queue, id int64, reason string) error
	Insert(ctx context.Context, q model.Queue, row model.MailboxRow) (model.MailboxRow, error)
	ListByStatus(ctx context.Context, q model.Queue, status model.Status, limit, offset int) ([]model.MailboxRow, error)
	// Resubmit copies a failed row into a new pending row.
	Resubmit(ctx context.Context, q model.Queue, id int64) (model.MailboxRow, error)
	PurgeTerminal(ctx context.Context, q model.Queue, before time.Time) (int64, error)
}

// PairingRepository reads confirmed pairings for the relay and holds the
// writes of the connect flow.
type PairingRepository interface {
	ResolveByID(ctx context.Context, id string) (model.Pairing, error)
	ResolveByCode(ctx context.Context, code string) (model.Pairing, error)
	ResolveByClientIdentity(ctx context.Context, clientIdentity string) (model.Pairing, error)

	CreatePending(ctx context.Context, p model.Pairing) error
	FindPendingByCode(ctx context.Context, code string) (model.Pairing, error)
	Connect(ctx context.Context, id string, dest model.Destination, at time.Time) (model.Pairing, error)
	Disconnect(ctx context.Context, id string) error
}

var (
	_ MailboxRepository = (*DB)(nil)
	_ PairingRepository = (*DB)(nil)
)
