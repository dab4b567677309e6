// Package notify tells subscribed remote clients that a command is waiting in
// their mailbox. Notifications are hints only: clients still poll, so a lost
// notification delays a command but never drops it.
package notify

import (
	"context"
	"errors"
	"time"
)

// CommandAvailable is published after a command row is committed.
type CommandAvailable struct {
	CommandID     int64     `json:"command_id"`
	CorrelationID string    `json:"correlation_id"`
	PairingID     string    `json:"pairing_id"`
	CommandKind   string    `json:"command_kind"`
	CreatedAt     time.Time `json:"created_at"`
}

type Notifier interface {
	Notify(ctx context.Context, n CommandAvailable) error
}

type Nop struct{}

func (Nop) Notify(context.Context, CommandAvailable) error { return nil }

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n CommandAvailable) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
