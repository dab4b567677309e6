package service_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/LeventeLantos/turn-relay/internal/client"
	"github.com/LeventeLantos/turn-relay/internal/model"
	"github.com/LeventeLantos/turn-relay/internal/render"
	"github.com/LeventeLantos/turn-relay/internal/repo"
)

type delivery struct {
	ChannelID string
	Message   render.Message
}

type fakeChat struct {
	mu         sync.Mutex
	deliveries []delivery
	resolved   []string

	missing    map[string]bool
	resolveErr error
	deliverErr error
	nextID     int
}

func (f *fakeChat) ResolveDestination(_ context.Context, dest model.Destination) (*client.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resolved = append(f.resolved, dest.ChannelID)
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	if f.missing[dest.ChannelID] {
		return nil, nil
	}
	return &client.Channel{ID: dest.ChannelID, GuildID: dest.GuildID}, nil
}

func (f *fakeChat) Deliver(_ context.Context, ch *client.Channel, msg render.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deliverErr != nil {
		return "", f.deliverErr
	}
	f.nextID++
	f.deliveries = append(f.deliveries, delivery{ChannelID: ch.ID, Message: msg})
	return "msg-" + strconv.Itoa(f.nextID), nil
}

func (f *fakeChat) Deliveries() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery(nil), f.deliveries...)
}

type markCall struct {
	ID     int64
	Status model.Status
	Value  string
}

// fakeMailbox hands out a fixed batch and records every write.
type fakeMailbox struct {
	mu sync.Mutex

	batch    []model.MailboxRow
	claimErr error
	markErr  error

	marks   []markCall
	inserts []model.MailboxRow
}

func (f *fakeMailbox) ClaimPending(_ context.Context, _ model.Queue, limit int, _ time.Time) ([]model.MailboxRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claimErr != nil {
		return nil, f.claimErr
	}
	n := len(f.batch)
	if n > limit {
		n = limit
	}
	out := f.batch[:n]
	f.batch = f.batch[n:]
	return out, nil
}

func (f *fakeMailbox) MarkSent(_ context.Context, _ model.Queue, id int64, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, markCall{ID: id, Status: model.Posted, Value: ref})
	return f.markErr
}

func (f *fakeMailbox) MarkFailed(_ context.Context, _ model.Queue, id int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, markCall{ID: id, Status: model.Failed, Value: reason})
	return f.markErr
}

func (f *fakeMailbox) Insert(_ context.Context, _ model.Queue, row model.MailboxRow) (model.MailboxRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row.ID = int64(len(f.inserts) + 1)
	row.Status = model.Pending
	f.inserts = append(f.inserts, row)
	return row, nil
}

func (f *fakeMailbox) ListByStatus(context.Context, model.Queue, model.Status, int, int) ([]model.MailboxRow, error) {
	return nil, nil
}

func (f *fakeMailbox) Resubmit(context.Context, model.Queue, int64) (model.MailboxRow, error) {
	return model.MailboxRow{}, repo.ErrNotFound
}

func (f *fakeMailbox) PurgeTerminal(context.Context, model.Queue, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeMailbox) Marks() []markCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]markCall(nil), f.marks...)
}

func (f *fakeMailbox) Inserts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserts)
}

type fakeResolver struct {
	byClient map[string]model.Pairing
	err      error
}

func (f *fakeResolver) ResolveByClientIdentity(_ context.Context, id string) (model.Pairing, error) {
	if f.err != nil {
		return model.Pairing{}, f.err
	}
	p, ok := f.byClient[id]
	if !ok {
		return model.Pairing{}, repo.ErrNotFound
	}
	return p, nil
}

var errBoom = errors.New("boom")
