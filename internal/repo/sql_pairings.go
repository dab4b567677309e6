package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/LeventeLantos/turn-relay/internal/model"
)

var pairingColumns = []string{
	"id",
	"code",
	"client_identity",
	"channel_id",
	"guild_id",
	"status",
	"created_at",
	"connected_at",
}

// NormalizeCode is the form codes are stored and looked up in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (d *DB) ResolveByID(ctx context.Context, id string) (model.Pairing, error) {
	return d.findPairing(ctx, sq.Eq{"id": id, "status": string(model.PairingConnected)}, "")
}

func (d *DB) ResolveByCode(ctx context.Context, code string) (model.Pairing, error) {
	return d.findPairing(ctx, sq.Eq{"code": NormalizeCode(code), "status": string(model.PairingConnected)}, "")
}

// ResolveByClientIdentity returns the most recently connected pairing of the
// client.
func (d *DB) ResolveByClientIdentity(ctx context.Context, clientIdentity string) (model.Pairing, error) {
	return d.findPairing(ctx,
		sq.Eq{"client_identity": clientIdentity, "status": string(model.PairingConnected)},
		"connected_at DESC",
	)
}

func (d *DB) FindPendingByCode(ctx context.Context, code string) (model.Pairing, error) {
	return d.findPairing(ctx, sq.Eq{"code": NormalizeCode(code), "status": string(model.PairingPending)}, "")
}

func (d *DB) CreatePending(ctx context.Context, p model.Pairing) error {
	if p.ID == "" || p.Code == "" || p.ClientIdentity == "" {
		return errors.New("pairing id, code and client identity are required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = d.now()
	}

	sqlStr, args, err := d.sb.
		Insert("pairings").
		Columns("id", "code", "client_identity", "status", "created_at").
		Values(p.ID, NormalizeCode(p.Code), p.ClientIdentity, string(model.PairingPending), toMillis(p.CreatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build pairing insert: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert pairing: %w", err)
	}
	return nil
}

// Connect binds a pending pairing to dest. It fails with ErrNotFound when the
// pairing is no longer pending.
func (d *DB) Connect(ctx context.Context, id string, dest model.Destination, at time.Time) (model.Pairing, error) {
	if dest.ChannelID == "" {
		return model.Pairing{}, errors.New("channel id is required")
	}

	sqlStr, args, err := d.sb.
		Update("pairings").
		Set("status", string(model.PairingConnected)).
		Set("channel_id", dest.ChannelID).
		Set("guild_id", dest.GuildID).
		Set("connected_at", toMillis(at)).
		Where(sq.Eq{"id": id, "status": string(model.PairingPending)}).
		ToSql()
	if err != nil {
		return model.Pairing{}, fmt.Errorf("build pairing connect: %w", err)
	}

	res, err := d.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return model.Pairing{}, fmt.Errorf("connect pairing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Pairing{}, fmt.Errorf("connect rows affected: %w", err)
	}
	if n == 0 {
		return model.Pairing{}, ErrNotFound
	}
	return d.ResolveByID(ctx, id)
}

func (d *DB) Disconnect(ctx context.Context, id string) error {
	sqlStr, args, err := d.sb.
		Update("pairings").
		Set("status", string(model.PairingDisconnected)).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": string(model.PairingDisconnected)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build pairing disconnect: %w", err)
	}

	res, err := d.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("disconnect pairing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("disconnect rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) findPairing(ctx context.Context, where sq.Sqlizer, orderBy string) (model.Pairing, error) {
	q := d.sb.Select(pairingColumns...).From("pairings").Where(where).Limit(1)
	if orderBy != "" {
		q = q.OrderBy(orderBy)
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return model.Pairing{}, fmt.Errorf("build pairing select: %w", err)
	}

	var p pairingScan
	err = d.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&p.id, &p.code, &p.clientIdentity, &p.channelID, &p.guildID, &p.status, &p.createdAt, &p.connectedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Pairing{}, ErrNotFound
		}
		return model.Pairing{}, fmt.Errorf("select pairing: %w", err)
	}
	return p.pairing(), nil
}

// pairingScan tolerates NULLs so it can also receive LEFT JOIN columns.
type pairingScan struct {
	id             sql.NullString
	code           sql.NullString
	clientIdentity sql.NullString
	channelID      sql.NullString
	guildID        sql.NullString
	status         sql.NullString
	createdAt      sql.NullInt64
	connectedAt    sql.NullInt64
}

func (p pairingScan) pairing() model.Pairing {
	return model.Pairing{
		ID:             p.id.String,
		Code:           p.code.String,
		ClientIdentity: p.clientIdentity.String,
		Destination: model.Destination{
			ChannelID: p.channelID.String,
			GuildID:   p.guildID.String,
		},
		Status:      model.PairingStatus(p.status.String),
		CreatedAt:   fromMillis(p.createdAt.Int64),
		ConnectedAt: nullTime(p.connectedAt),
	}
}
