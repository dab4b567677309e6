package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/LeventeLantos/turn-relay/internal/model"
)

var rowColumns = []string{
	"e.id",
	"e.pairing_id",
	"e.event_type",
	"e.payload",
	"e.status",
	"e.correlation_id",
	"e.created_at",
	"e.claimed_at",
	"e.terminal_at",
	"e.terminal_ref",
	"e.failure_reason",
}

func tableFor(q model.Queue) (string, error) {
	switch q {
	case model.TurnQueue:
		return "turn_events", nil
	case model.CommandQueue:
		return "command_events", nil
	}
	return "", fmt.Errorf("unknown queue %q", q)
}

func sentStatus(q model.Queue) model.Status {
	if q == model.CommandQueue {
		return model.Delivered
	}
	return model.Posted
}

func claimable(staleBefore time.Time) sq.Sqlizer {
	if staleBefore.IsZero() {
		return sq.Eq{"status": string(model.Pending)}
	}
	return sq.Or{
		sq.Eq{"status": string(model.Pending)},
		sq.And{
			sq.Eq{"status": string(model.Processing)},
			sq.LtOrEq{"claimed_at": toMillis(staleBefore)},
		},
	}
}

func (d *DB) ClaimPending(ctx context.Context, q model.Queue, limit int, staleBefore time.Time) ([]model.MailboxRow, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	table, err := tableFor(q)
	if err != nil {
		return nil, err
	}

	sqlStr, args, err := d.sb.
		Select("id").
		From(table).
		Where(claimable(staleBefore)).
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claim select: %w", err)
	}

	candidates, err := d.queryIDs(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("select claim candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	now := toMillis(d.now())
	claimed := make([]int64, 0, len(candidates))
	for _, id := range candidates {
		sqlStr, args, err := d.sb.
			Update(table).
			Set("status", string(model.Processing)).
			Set("claimed_at", now).
			Where(sq.Eq{"id": id}).
			Where(claimable(staleBefore)).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build claim update: %w", err)
		}

		res, err := d.db.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			return nil, fmt.Errorf("claim row %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim rows affected for %d: %w", id, err)
		}
		// another poller won this row
		if n == 0 {
			continue
		}
		claimed = append(claimed, id)
	}
	if len(claimed) == 0 {
		return nil, nil
	}

	cols := append(append([]string{}, rowColumns...),
		"p.id", "p.code", "p.client_identity", "p.channel_id", "p.guild_id", "p.status", "p.created_at", "p.connected_at",
	)
	sqlStr, args, err = d.sb.
		Select(cols...).
		From(table+" e").
		LeftJoin("pairings p ON p.id = e.pairing_id AND p.status = ?", string(model.PairingConnected)).
		Where(sq.Eq{"e.id": claimed}).
		OrderBy("e.created_at ASC", "e.id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build claimed select: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query claimed rows: %w", err)
	}
	defer rows.Close()

	out := make([]model.MailboxRow, 0, len(claimed))
	for rows.Next() {
		var p pairingScan
		dest := rowScanDest()
		dest.targets = append(dest.targets,
			&p.id, &p.code, &p.clientIdentity, &p.channelID, &p.guildID, &p.status, &p.createdAt, &p.connectedAt,
		)
		if err := rows.Scan(dest.targets...); err != nil {
			return nil, fmt.Errorf("scan claimed row: %w", err)
		}

		m := dest.row()
		if p.id.Valid {
			pairing := p.pairing()
			m.Pairing = &pairing
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed rows: %w", err)
	}
	return out, nil
}

func (d *DB) MarkSent(ctx context.Context, q model.Queue, id int64, ref string) error {
	return d.markTerminal(ctx, q, id, map[string]any{
		"status":       string(sentStatus(q)),
		"terminal_ref": ref,
	})
}

func (d *DB) MarkFailed(ctx context.Context, q model.Queue, id int64, reason string) error {
	if reason == "" {
		reason = "unknown error"
	}
	return d.markTerminal(ctx, q, id, map[string]any{
		"status":         string(model.Failed),
		"failure_reason": reason,
	})
}

// markTerminal only moves rows that are still pending or processing, which
// makes repeated calls harmless and keeps terminal states final.
func (d *DB) markTerminal(ctx context.Context, q model.Queue, id int64, set map[string]any) error {
	table, err := tableFor(q)
	if err != nil {
		return err
	}
	set["terminal_at"] = toMillis(d.now())

	sqlStr, args, err := d.sb.
		Update(table).
		SetMap(set).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": []string{string(model.Pending), string(model.Processing)}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build terminal update: %w", err)
	}

	res, err := d.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update row %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %d: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	if _, err := d.get(ctx, q, id); err != nil {
		return err
	}
	return nil
}

func (d *DB) Insert(ctx context.Context, q model.Queue, row model.MailboxRow) (model.MailboxRow, error) {
	table, err := tableFor(q)
	if err != nil {
		return model.MailboxRow{}, err
	}
	if row.PairingID == "" {
		return model.MailboxRow{}, errors.New("pairing id is required")
	}
	if row.EventType == "" {
		return model.MailboxRow{}, errors.New("event type is required")
	}

	payload := string(row.Payload)
	if payload == "" {
		payload = "{}"
	}
	var corr sql.NullString
	if row.CorrelationID != nil {
		corr = sql.NullString{String: *row.CorrelationID, Valid: true}
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = d.now()
	}
	row.CreatedAt = fromMillis(toMillis(row.CreatedAt))

	sqlStr, args, err := d.sb.
		Insert(table).
		Columns("pairing_id", "event_type", "payload", "status", "correlation_id", "created_at").
		Values(row.PairingID, row.EventType, payload, string(model.Pending), corr, toMillis(row.CreatedAt)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return model.MailboxRow{}, fmt.Errorf("build insert: %w", err)
	}

	if err := d.db.QueryRowContext(ctx, sqlStr, args...).Scan(&row.ID); err != nil {
		return model.MailboxRow{}, fmt.Errorf("insert %s row: %w", q, err)
	}

	row.Payload = []byte(payload)
	row.Status = model.Pending
	row.ClaimedAt = nil
	row.TerminalAt = nil
	row.TerminalRef = nil
	row.FailureReason = nil
	row.Pairing = nil
	return row, nil
}

func (d *DB) ListByStatus(ctx context.Context, q model.Queue, status model.Status, limit, offset int) ([]model.MailboxRow, error) {
	table, err := tableFor(q)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	sqlStr, args, err := d.sb.
		Select(rowColumns...).
		From(table+" e").
		Where(sq.Eq{"e.status": string(status)}).
		OrderBy("e.created_at DESC", "e.id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s rows: %w", q, err)
	}
	defer rows.Close()

	out := make([]model.MailboxRow, 0)
	for rows.Next() {
		dest := rowScanDest()
		if err := rows.Scan(dest.targets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, dest.row())
	}
	return out, rows.Err()
}

func (d *DB) Resubmit(ctx context.Context, q model.Queue, id int64) (model.MailboxRow, error) {
	orig, err := d.get(ctx, q, id)
	if err != nil {
		return model.MailboxRow{}, err
	}
	if orig.Status != model.Failed {
		return model.MailboxRow{}, fmt.Errorf("row %d is %s: %w", id, orig.Status, ErrNotFailed)
	}

	return d.Insert(ctx, q, model.MailboxRow{
		PairingID:     orig.PairingID,
		EventType:     orig.EventType,
		Payload:       orig.Payload,
		CorrelationID: orig.CorrelationID,
	})
}

func (d *DB) PurgeTerminal(ctx context.Context, q model.Queue, before time.Time) (int64, error) {
	table, err := tableFor(q)
	if err != nil {
		return 0, err
	}

	sqlStr, args, err := d.sb.
		Delete(table).
		Where(sq.Eq{"status": []string{string(model.Posted), string(model.Delivered), string(model.Failed)}}).
		Where(sq.Lt{"terminal_at": toMillis(before)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge: %w", err)
	}

	res, err := d.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("purge %s rows: %w", q, err)
	}
	return res.RowsAffected()
}

func (d *DB) get(ctx context.Context, q model.Queue, id int64) (model.MailboxRow, error) {
	table, err := tableFor(q)
	if err != nil {
		return model.MailboxRow{}, err
	}

	sqlStr, args, err := d.sb.
		Select(rowColumns...).
		From(table + " e").
		Where(sq.Eq{"e.id": id}).
		ToSql()
	if err != nil {
		return model.MailboxRow{}, fmt.Errorf("build get: %w", err)
	}

	dest := rowScanDest()
	if err := d.db.QueryRowContext(ctx, sqlStr, args...).Scan(dest.targets...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.MailboxRow{}, ErrNotFound
		}
		return model.MailboxRow{}, fmt.Errorf("get row %d: %w", id, err)
	}
	return dest.row(), nil
}

func (d *DB) queryIDs(ctx context.Context, sqlStr string, args ...any) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScan struct {
	m             model.MailboxRow
	payload       []byte
	status        string
	correlationID sql.NullString
	createdAt     int64
	claimedAt     sql.NullInt64
	terminalAt    sql.NullInt64
	terminalRef   sql.NullString
	failure       sql.NullString

	targets []any
}

func rowScanDest() *rowScan {
	s := &rowScan{}
	s.targets = []any{
		&s.m.ID,
		&s.m.PairingID,
		&s.m.EventType,
		&s.payload,
		&s.status,
		&s.correlationID,
		&s.createdAt,
		&s.claimedAt,
		&s.terminalAt,
		&s.terminalRef,
		&s.failure,
	}
	return s
}

func (s *rowScan) row() model.MailboxRow {
	m := s.m
	m.Payload = append([]byte(nil), s.payload...)
	m.Status = model.Status(s.status)
	m.CorrelationID = nullString(s.correlationID)
	m.CreatedAt = fromMillis(s.createdAt)
	m.ClaimedAt = nullTime(s.claimedAt)
	m.TerminalAt = nullTime(s.terminalAt)
	m.TerminalRef = nullString(s.terminalRef)
	m.FailureReason = nullString(s.failure)
	return m
}
