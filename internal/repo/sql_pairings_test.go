package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LeventeLantos/turn-relay/internal/model"
)

func TestPairing_PendingIsNotResolvable(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	if err := db.CreatePending(ctx, model.Pairing{ID: "p1", Code: " ab12cd ", ClientIdentity: "client-1"}); err != nil {
		t.Fatalf("CreatePending() error: %v", err)
	}

	if _, err := db.ResolveByID(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected pending pairing to be invisible, got %v", err)
	}
	if _, err := db.ResolveByClientIdentity(ctx, "client-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected pending pairing to be invisible, got %v", err)
	}

	p, err := db.FindPendingByCode(ctx, "AB12CD")
	if err != nil {
		t.Fatalf("FindPendingByCode() error: %v", err)
	}
	if p.ID != "p1" || p.Code != "AB12CD" || p.Status != model.PairingPending {
		t.Fatalf("unexpected pending pairing: %+v", p)
	}
}

func TestPairing_ConnectResolveDisconnect(t *testing.T) {
	db, clock := openTestDB(t)
	ctx := context.Background()

	if err := db.CreatePending(ctx, model.Pairing{ID: "p1", Code: "XYZ789", ClientIdentity: "client-1"}); err != nil {
		t.Fatalf("CreatePending() error: %v", err)
	}

	at := clock.Now().Add(time.Minute)
	p, err := db.Connect(ctx, "p1", model.Destination{ChannelID: "chan-9", GuildID: "guild-9"}, at)
	if err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if p.Status != model.PairingConnected || !p.HasDestination() {
		t.Fatalf("unexpected connected pairing: %+v", p)
	}
	if p.ConnectedAt == nil || !p.ConnectedAt.Equal(at) {
		t.Fatalf("expected connected_at %v, got %v", at, p.ConnectedAt)
	}

	byCode, err := db.ResolveByCode(ctx, "xyz789")
	if err != nil || byCode.ID != "p1" {
		t.Fatalf("ResolveByCode() = %+v, %v", byCode, err)
	}
	byClient, err := db.ResolveByClientIdentity(ctx, "client-1")
	if err != nil || byClient.Destination.ChannelID != "chan-9" {
		t.Fatalf("ResolveByClientIdentity() = %+v, %v", byClient, err)
	}

	if _, err := db.Connect(ctx, "p1", model.Destination{ChannelID: "other"}, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second connect to fail, got %v", err)
	}

	if err := db.Disconnect(ctx, "p1"); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}
	if _, err := db.ResolveByID(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected disconnected pairing to be invisible, got %v", err)
	}
	if err := db.Disconnect(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second disconnect to report ErrNotFound, got %v", err)
	}
}

func TestPairing_ClientIdentityPrefersLatest(t *testing.T) {
	db, clock := openTestDB(t)
	ctx := context.Background()

	connectPairing(t, db, "old", "client-1", "chan-old")
	clock.Advance(time.Hour)
	connectPairing(t, db, "new", "client-1", "chan-new")

	p, err := db.ResolveByClientIdentity(ctx, "client-1")
	if err != nil {
		t.Fatalf("ResolveByClientIdentity() error: %v", err)
	}
	if p.ID != "new" {
		t.Fatalf("expected latest pairing, got %q", p.ID)
	}
}

func TestPairing_Validation(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	if err := db.CreatePending(ctx, model.Pairing{ID: "p1"}); err == nil {
		t.Fatalf("expected error for missing code")
	}
	if err := db.CreatePending(ctx, model.Pairing{ID: "p1", Code: "A", ClientIdentity: "c"}); err != nil {
		t.Fatalf("CreatePending() error: %v", err)
	}
	if err := db.CreatePending(ctx, model.Pairing{ID: "p2", Code: "a", ClientIdentity: "c"}); err == nil {
		t.Fatalf("expected duplicate code to be rejected")
	}
	if _, err := db.Connect(ctx, "p1", model.Destination{}, time.Now()); err == nil {
		t.Fatalf("expected error for empty channel")
	}
}

func TestClaimPending_IgnoresDisconnectedPairing(t *testing.T) {
	db, clock := openTestDB(t)
	ctx := context.Background()

	connectPairing(t, db, "p1", "client-1", "chan-1")
	if err := db.Disconnect(ctx, "p1"); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}
	insertTurn(t, db, "p1", clock.Now())

	rows, err := db.ClaimPending(ctx, model.TurnQueue, 10, time.Time{})
	if err != nil {
		t.Fatalf("ClaimPending() error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Pairing != nil {
		t.Fatalf("disconnected pairing must not be joined, got %+v", rows[0].Pairing)
	}
}
