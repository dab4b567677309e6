package model

import (
	"encoding/json"
	"time"
)

type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Posted     Status = "posted"
	Delivered  Status = "delivered"
	Failed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == Posted || s == Delivered || s == Failed
}

// Queue names one of the two mailboxes.
type Queue string

const (
	TurnQueue    Queue = "turn"
	CommandQueue Queue = "command"
)

func (q Queue) Valid() bool {
	return q == TurnQueue || q == CommandQueue
}

// MailboxRow is a single queued event. The producer creates it; only the relay
// changes Status and the terminal fields.
type MailboxRow struct {
	ID            int64           `json:"id"`
	PairingID     string          `json:"pairingId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	CorrelationID *string         `json:"correlationId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	ClaimedAt     *time.Time      `json:"claimedAt,omitempty"`
	TerminalAt    *time.Time      `json:"terminalAt,omitempty"`
	TerminalRef   *string         `json:"terminalRef,omitempty"`
	FailureReason *string         `json:"failureReason,omitempty"`

	// Pairing is the connected pairing joined in by ClaimPending; nil when
	// the row's pairing is missing or not connected.
	Pairing *Pairing `json:"-"`
}
