package cache

import (
	"context"
	"time"

	"github.com/LeventeLantos/turn-relay/internal/model"
)

// DeliveryCache remembers which mailbox rows already reached their
// destination, so a row reclaimed after a crash is not rendered twice.
type DeliveryCache interface {
	StoreSent(ctx context.Context, q model.Queue, id int64, ref string, sentAt time.Time) error
	LookupSent(ctx context.Context, q model.Queue, id int64) (ref string, ok bool, err error)
}

// Nop is used when no Redis is configured.
type Nop struct{}

func (Nop) StoreSent(context.Context, model.Queue, int64, string, time.Time) error { return nil }

func (Nop) LookupSent(context.Context, model.Queue, int64) (string, bool, error) {
	return "", false, nil
}
