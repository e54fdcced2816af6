package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/VenkatGGG/admin-console/internal/catalog"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) ListEvents(ctx context.Context, query catalog.ListQuery) ([]catalog.Event, int, error) {
	query = query.Normalize()
	var where whereClause
	if active, ok := query.BoolFilter("isActive"); ok {
		where.add("is_active = ?", active)
	}
	if query.Search != "" {
		where.add("(name ILIKE ? OR description ILIKE ?)", like(query.Search), like(query.Search))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	args := append(where.args, query.Limit, query.Offset())
	rows, err := s.pool.Query(ctx, `
SELECT `+eventColumns+`
FROM events`+where.sql()+`
ORDER BY created_at DESC, id DESC
LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := make([]catalog.Event, 0, query.Limit)
	for rows.Next() {
		item, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (catalog.Event, error) {
	return s.getEvent(ctx, s.pool, id, false)
}

func (s *PostgresStore) CreateEvent(ctx context.Context, req catalog.CreateEventRequest) (catalog.Event, error) {
	e, err := newEvent(req, time.Now().UTC())
	if err != nil {
		return catalog.Event{}, err
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO events (id, name, description, max_quantity, issued_count, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, $5, $6, $6)
RETURNING `+eventColumns, e.ID, e.Name, e.Description, e.MaxQuantity, e.IsActive, e.CreatedAt)
	return scanEvent(row)
}

func (s *PostgresStore) UpdateEvent(ctx context.Context, id string, req catalog.UpdateEventRequest) (catalog.Event, error) {
	var out catalog.Event
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := s.getEvent(ctx, tx, id, true)
		if err != nil {
			return err
		}
		updated, err := applyEventUpdate(current, req, time.Now().UTC())
		if err != nil {
			return err
		}
		out, err = scanEvent(tx.QueryRow(ctx, `
UPDATE events
SET name = $2, description = $3, max_quantity = $4, is_active = $5, updated_at = $6
WHERE id = $1
RETURNING `+eventColumns, updated.ID, updated.Name, updated.Description, updated.MaxQuantity, updated.IsActive, updated.UpdatedAt))
		return err
	})
	return out, err
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("event")
	}
	return nil
}

func (s *PostgresStore) ToggleEvent(ctx context.Context, id string) (catalog.Event, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE events SET is_active = NOT is_active, updated_at = $2
WHERE id = $1
RETURNING `+eventColumns, strings.TrimSpace(id), time.Now().UTC())
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Event{}, notFound("event")
	}
	return e, err
}

func (s *PostgresStore) EventStats(ctx context.Context) (catalog.EventStats, error) {
	var stats catalog.EventStats
	err := s.pool.QueryRow(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE is_active),
	COUNT(*) FILTER (WHERE NOT is_active),
	COALESCE(SUM(issued_count), 0),
	COALESCE(SUM(GREATEST(max_quantity - issued_count, 0)), 0)
FROM events`).Scan(&stats.TotalEvents, &stats.ActiveEvents, &stats.InactiveEvents, &stats.TotalIssued, &stats.TotalAvailable)
	if err != nil {
		return catalog.EventStats{}, fmt.Errorf("event stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) ListVouchers(ctx context.Context, query catalog.ListQuery) ([]catalog.Voucher, int, error) {
	query = query.Normalize()
	var where whereClause
	if used, ok := query.BoolFilter("isUsed"); ok {
		where.add("v.is_used = ?", used)
	}
	if eventID := strings.TrimSpace(query.Filter["eventId"]); eventID != "" {
		where.add("v.event_id = ?", eventID)
	}
	if discountType := strings.TrimSpace(query.Filter["type"]); discountType != "" {
		where.add("v.type = ?", discountType)
	}
	if query.Search != "" {
		where.add("(v.code ILIKE ? OR v.issued_to ILIKE ? OR COALESCE(v.recipient_name, '') ILIKE ?)",
			like(query.Search), like(query.Search), like(query.Search))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vouchers v`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count vouchers: %w", err)
	}

	args := append(where.args, query.Limit, query.Offset())
	rows, err := s.pool.Query(ctx, voucherSelect+where.sql()+`
ORDER BY v.created_at DESC, v.id DESC
LIMIT $`+strconv.Itoa(len(args)-1)+` OFFSET $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()

	items := make([]catalog.Voucher, 0, query.Limit)
	for rows.Next() {
		item, err := scanVoucher(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *PostgresStore) GetVoucher(ctx context.Context, id string) (catalog.Voucher, error) {
	return s.getVoucher(ctx, s.pool, "v.id", strings.TrimSpace(id))
}

func (s *PostgresStore) FindVoucherByCode(ctx context.Context, code string) (catalog.Voucher, error) {
	return s.getVoucher(ctx, s.pool, "v.code", normalizeCode(code))
}

// IssueVoucher inserts the voucher and bumps the event's issued count in one
// transaction, holding the event row lock.
func (s *PostgresStore) IssueVoucher(ctx context.Context, req catalog.CreateVoucherRequest) (catalog.Voucher, error) {
	var id string
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		event, err := s.getEvent(ctx, tx, req.EventID, true)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		v, err := newVoucher(req, event, now)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE events SET issued_count = issued_count + 1, updated_at = $2 WHERE id = $1`, event.ID, now); err != nil {
			return fmt.Errorf("bump issued count: %w", err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO vouchers (
	id, event_id, code, issued_to, recipient_name, phone_number, is_used, type, value,
	usage_limit, used_count, minimum_order_amount, maximum_discount, valid_from, valid_to,
	notes, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $8, $9, 0, $10, $11, $12, $13, $14, $15, $15)`,
			v.ID, v.EventID, v.Code, v.IssuedTo, nullableString(v.RecipientName), nullableString(v.PhoneNumber),
			string(v.Type), v.Value, v.UsageLimit, v.MinimumOrderAmount, v.MaximumDiscount, v.ValidFrom, v.ValidTo,
			nullableString(v.Notes), v.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert voucher: %w", err)
		}
		id = v.ID
		return nil
	})
	if err != nil {
		return catalog.Voucher{}, err
	}
	return s.GetVoucher(ctx, id)
}

func (s *PostgresStore) UpdateVoucher(ctx context.Context, id string, req catalog.UpdateVoucherRequest) (catalog.Voucher, error) {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := s.getVoucher(ctx, tx, "v.id", strings.TrimSpace(id))
		if err != nil {
			return err
		}
		updated, err := applyVoucherUpdate(current, req, time.Now().UTC())
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
UPDATE vouchers SET
	is_used = $2, recipient_name = $3, phone_number = $4, type = $5, value = $6,
	usage_limit = $7, minimum_order_amount = $8, maximum_discount = $9,
	valid_from = $10, valid_to = $11, notes = $12, updated_at = $13
WHERE id = $1`,
			updated.ID, updated.IsUsed, nullableString(updated.RecipientName), nullableString(updated.PhoneNumber),
			string(updated.Type), updated.Value, updated.UsageLimit, updated.MinimumOrderAmount, updated.MaximumDiscount,
			updated.ValidFrom, updated.ValidTo, nullableString(updated.Notes), updated.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update voucher: %w", err)
		}
		return nil
	})
	if err != nil {
		return catalog.Voucher{}, err
	}
	return s.GetVoucher(ctx, id)
}

func (s *PostgresStore) DeleteVoucher(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var eventID string
		err := tx.QueryRow(ctx, `DELETE FROM vouchers WHERE id = $1 RETURNING event_id`, strings.TrimSpace(id)).Scan(&eventID)
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("voucher")
		}
		if err != nil {
			return fmt.Errorf("delete voucher: %w", err)
		}
		_, err = tx.Exec(ctx, `
UPDATE events SET issued_count = GREATEST(issued_count - 1, 0), updated_at = $2
WHERE id = $1`, eventID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("release event slot: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) ToggleVoucherUsage(ctx context.Context, id string) (catalog.Voucher, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE vouchers SET is_used = NOT is_used, updated_at = $2 WHERE id = $1`, strings.TrimSpace(id), time.Now().UTC())
	if err != nil {
		return catalog.Voucher{}, fmt.Errorf("toggle voucher usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.Voucher{}, notFound("voucher")
	}
	return s.GetVoucher(ctx, id)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) getEvent(ctx context.Context, q querier, id string, forUpdate bool) (catalog.Event, error) {
	sql := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	e, err := scanEvent(q.QueryRow(ctx, sql, strings.TrimSpace(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Event{}, notFound("event")
	}
	return e, err
}

func (s *PostgresStore) getVoucher(ctx context.Context, q querier, column, value string) (catalog.Voucher, error) {
	v, err := scanVoucher(q.QueryRow(ctx, voucherSelect+` WHERE `+column+` = $1`, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Voucher{}, notFound("voucher")
	}
	return v, err
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	max_quantity INTEGER NOT NULL,
	issued_count INTEGER NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS vouchers (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL REFERENCES events (id) ON DELETE CASCADE,
	code TEXT NOT NULL UNIQUE,
	issued_to TEXT NOT NULL,
	recipient_name TEXT NULL,
	phone_number TEXT NULL,
	is_used BOOLEAN NOT NULL DEFAULT FALSE,
	type TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL DEFAULT 0,
	usage_limit INTEGER NOT NULL DEFAULT 0,
	used_count INTEGER NOT NULL DEFAULT 0,
	minimum_order_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
	maximum_discount DOUBLE PRECISION NOT NULL DEFAULT 0,
	valid_from TIMESTAMPTZ NULL,
	valid_to TIMESTAMPTZ NULL,
	notes TEXT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_created ON events (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_vouchers_event ON vouchers (event_id, created_at DESC);
`)
	if err != nil {
		return fmt.Errorf("initialize inventory schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const eventColumns = `
id,
name,
description,
max_quantity,
issued_count,
is_active,
created_at,
updated_at`

func scanEvent(row rowScanner) (catalog.Event, error) {
	var item catalog.Event
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&item.MaxQuantity,
		&item.IssuedCount,
		&item.IsActive,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return catalog.Event{}, err
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}

const voucherSelect = `
SELECT
	v.id, v.event_id, v.code, v.issued_to, v.recipient_name, v.phone_number, v.is_used,
	v.type, v.value, v.usage_limit, v.used_count, v.minimum_order_amount, v.maximum_discount,
	v.valid_from, v.valid_to, v.notes, v.created_at, v.updated_at,
	e.id, e.name, e.description, e.max_quantity, e.issued_count, e.is_active, e.created_at, e.updated_at
FROM vouchers v
JOIN events e ON e.id = v.event_id`

func scanVoucher(row rowScanner) (catalog.Voucher, error) {
	var item catalog.Voucher
	var recipientName, phoneNumber, notes *string
	var discountType string
	var validFrom, validTo *time.Time

	err := row.Scan(
		&item.ID,
		&item.EventID,
		&item.Code,
		&item.IssuedTo,
		&recipientName,
		&phoneNumber,
		&item.IsUsed,
		&discountType,
		&item.Value,
		&item.UsageLimit,
		&item.UsedCount,
		&item.MinimumOrderAmount,
		&item.MaximumDiscount,
		&validFrom,
		&validTo,
		&notes,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.Event.ID,
		&item.Event.Name,
		&item.Event.Description,
		&item.Event.MaxQuantity,
		&item.Event.IssuedCount,
		&item.Event.IsActive,
		&item.Event.CreatedAt,
		&item.Event.UpdatedAt,
	)
	if err != nil {
		return catalog.Voucher{}, err
	}

	item.Type = catalog.DiscountType(discountType)
	item.RecipientName = deref(recipientName)
	item.PhoneNumber = deref(phoneNumber)
	item.Notes = deref(notes)
	item.ValidFrom = utcPtr(validFrom)
	item.ValidTo = utcPtr(validTo)
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}

// whereClause collects AND-ed conditions written with ? placeholders and
// renumbers them for postgres.
type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(cond string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		cond = strings.Replace(cond, "?", "$"+strconv.Itoa(len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *whereClause) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func like(search string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(search))
	return "%" + escaped + "%"
}

func nullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := value.UTC()
	return &v
}
