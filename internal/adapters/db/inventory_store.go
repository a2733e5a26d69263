// internal/adapters/db/inventory_store.go
package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
)

const maxLocationDepth = 64

// Postgres error codes
const (
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var itemColumns = []string{
	"i.id", "i.name", "i.description", "i.category_id", "COALESCE(c.name, '')",
	"i.tags", "i.status", "i.unit_value", "i.created_at", "i.updated_at", "i.deleted_at",
}

var movementColumns = []string{
	"id", "item_id", "type", "source_id", "destination_id", "quantity",
	"rules_evaluated", "warnings", "correlation_id", "created_at",
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// InventoryStore implements ports.InventoryStore on PostgreSQL
type InventoryStore struct {
	reader
	db     *Database
	logger *slog.Logger
}

var _ ports.InventoryStore = (*InventoryStore)(nil)

// NewInventoryStore creates the Postgres inventory store
func NewInventoryStore(db *Database, logger *slog.Logger) *InventoryStore {
	return &InventoryStore{
		reader: reader{q: db.Pool()},
		db:     db,
		logger: logger.With(slog.String("repository", "inventory")),
	}
}

// reader runs the read queries shared by the store and its transactions
type reader struct {
	q querier
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*domain.Item, error) {
	var item domain.Item
	var status string
	err := row.Scan(
		&item.ID, &item.Name, &item.Description, &item.CategoryID, &item.CategoryName,
		&item.Tags, &status, &item.UnitValue, &item.CreatedAt, &item.UpdatedAt, &item.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Status = domain.ItemStatus(status)
	return &item, nil
}

func scanMovement(row scanner) (*domain.MovementLogEntry, error) {
	var entry domain.MovementLogEntry
	var movementType string
	err := row.Scan(
		&entry.ID, &entry.ItemID, &movementType, &entry.SourceID, &entry.DestinationID, &entry.Quantity,
		&entry.RulesEvaluated, &entry.Warnings, &entry.CorrelationID, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.Type = domain.MovementType(movementType)
	return &entry, nil
}

func collectMovements(rows pgx.Rows) ([]domain.MovementLogEntry, error) {
	defer rows.Close()

	entries := make([]domain.MovementLogEntry, 0)
	for rows.Next() {
		entry, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func itemQuery() squirrel.SelectBuilder {
	return psql.Select(itemColumns...).
		From("items i").
		LeftJoin("categories c ON c.id = i.category_id")
}

func (r reader) getItem(ctx context.Context, id uuid.UUID, forUpdate bool) (*domain.Item, error) {
	qb := itemQuery().Where("i.id = ?", id).Where("i.deleted_at IS NULL")
	if forUpdate {
		qb = qb.Suffix("FOR UPDATE OF i")
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	item, err := scanItem(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundError("item", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (r reader) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	return r.getItem(ctx, id, false)
}

func (r reader) GetLocation(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	var loc domain.Location
	var tier int16
	err := r.q.QueryRow(ctx,
		`SELECT id, parent_id, name, tier, capacity, created_at FROM locations WHERE id = $1`, id,
	).Scan(&loc.ID, &loc.ParentID, &loc.Name, &tier, &loc.Capacity, &loc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundError("location", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	loc.Tier = domain.LocationTier(tier)
	return &loc, nil
}

const locationPathQuery = `
	WITH RECURSIVE path AS (
		SELECT id, parent_id, name, tier, capacity, created_at, 0 AS depth
		FROM locations WHERE id = $1
		UNION ALL
		SELECT l.id, l.parent_id, l.name, l.tier, l.capacity, l.created_at, p.depth + 1
		FROM locations l
		JOIN path p ON l.id = p.parent_id
		WHERE p.depth < $2
	)
	SELECT id, parent_id, name, tier, capacity, created_at FROM path ORDER BY depth`

func (r reader) LocationPath(ctx context.Context, id uuid.UUID) (domain.LocationPath, error) {
	rows, err := r.q.Query(ctx, locationPathQuery, id, maxLocationDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to load location path: %w", err)
	}
	defer rows.Close()

	var path domain.LocationPath
	for rows.Next() {
		var loc domain.Location
		var tier int16
		if err := rows.Scan(&loc.ID, &loc.ParentID, &loc.Name, &tier, &loc.Capacity, &loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		loc.Tier = domain.LocationTier(tier)
		path = append(path, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load location path: %w", err)
	}
	if len(path) == 0 {
		return nil, domain.NotFoundError("location", id)
	}
	return path, nil
}

func (r reader) ItemQuantities(ctx context.Context, itemID uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := r.q.Query(ctx,
		`SELECT location_id, quantity FROM inventory_records WHERE item_id = $1`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load item quantities: %w", err)
	}
	defer rows.Close()

	quantities := make(map[uuid.UUID]int64)
	for rows.Next() {
		var loc uuid.UUID
		var qty int64
		if err := rows.Scan(&loc, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan quantity: %w", err)
		}
		quantities[loc] = qty
	}
	return quantities, rows.Err()
}

const subtreeTotalsQuery = `
	WITH RECURSIVE tree AS (
		SELECT id AS root, id FROM locations WHERE id = ANY($1::uuid[])
		UNION ALL
		SELECT t.root, l.id FROM locations l JOIN tree t ON l.parent_id = t.id
	)
	SELECT t.root, COALESCE(SUM(r.quantity), 0)::bigint
	FROM tree t
	LEFT JOIN inventory_records r ON r.location_id = t.id
	GROUP BY t.root`

func (r reader) SubtreeTotals(ctx context.Context, locationIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	totals := make(map[uuid.UUID]int64, len(locationIDs))
	if len(locationIDs) == 0 {
		return totals, nil
	}

	ids := make([]string, 0, len(locationIDs))
	for _, id := range locationIDs {
		ids = append(ids, id.String())
	}

	rows, err := r.q.Query(ctx, subtreeTotalsQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load subtree totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var root uuid.UUID
		var total int64
		if err := rows.Scan(&root, &total); err != nil {
			return nil, fmt.Errorf("failed to scan subtree total: %w", err)
		}
		totals[root] = total
	}
	return totals, rows.Err()
}

func (r reader) RecentMovements(ctx context.Context, itemID uuid.UUID, since time.Time) ([]domain.MovementLogEntry, error) {
	query, args, err := psql.Select(movementColumns...).
		From("movement_log").
		Where("item_id = ?", itemID).
		Where(squirrel.GtOrEq{"created_at": since}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent movements: %w", err)
	}
	return collectMovements(rows)
}

// pgTx is an InventoryTx bound to one Postgres transaction
type pgTx struct {
	reader
}

var _ ports.InventoryTx = (*pgTx)(nil)

// LockItem takes the item row lock for the rest of the transaction
func (t *pgTx) LockItem(ctx context.Context, itemID uuid.UUID) (*domain.Item, error) {
	return t.getItem(ctx, itemID, true)
}

// AdjustQuantity adds delta to the record, creating it when missing. The
// table's CHECK constraint refuses a negative result.
func (t *pgTx) AdjustQuantity(ctx context.Context, itemID, locationID uuid.UUID, delta int64) (*domain.InventoryRecord, error) {
	rec := domain.InventoryRecord{ItemID: itemID, LocationID: locationID}
	err := t.q.QueryRow(ctx, `
		INSERT INTO inventory_records (item_id, location_id, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (item_id, location_id) DO UPDATE
		SET quantity = inventory_records.quantity + EXCLUDED.quantity,
		    updated_at = EXCLUDED.updated_at
		RETURNING quantity, updated_at`,
		itemID, locationID, delta,
	).Scan(&rec.Quantity, &rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case codeCheckViolation:
				return nil, fmt.Errorf("%w: quantity at location %s would become negative", domain.ErrDataConflict, locationID)
			case codeForeignKeyViolation:
				return nil, domain.NotFoundError("location", locationID)
			}
		}
		return nil, fmt.Errorf("failed to adjust quantity: %w", err)
	}
	return &rec, nil
}

func (t *pgTx) AppendMovement(ctx context.Context, entry *domain.MovementLogEntry) error {
	query, args, err := psql.Insert("movement_log").
		Columns(movementColumns...).
		Values(
			entry.ID, entry.ItemID, string(entry.Type), entry.SourceID, entry.DestinationID, entry.Quantity,
			nonNil(entry.RulesEvaluated), nonNil(entry.Warnings), entry.CorrelationID, entry.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := t.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

func (t *pgTx) TouchItem(ctx context.Context, itemID uuid.UUID, at time.Time) error {
	tag, err := t.q.Exec(ctx, `UPDATE items SET updated_at = $2 WHERE id = $1`, itemID, at)
	if err != nil {
		return fmt.Errorf("failed to touch item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundError("item", itemID)
	}
	return nil
}

// InTx runs fn in one read committed transaction
func (s *InventoryStore) InTx(ctx context.Context, fn func(tx ports.InventoryTx) error) error {
	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		return fn(&pgTx{reader: reader{q: tx}})
	})
}

// SaveItem upserts the item, creating its category by name when needed
func (s *InventoryStore) SaveItem(ctx context.Context, item *domain.Item) error {
	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		if item.CategoryID == nil && item.CategoryName != "" {
			var categoryID uuid.UUID
			err := tx.QueryRow(ctx, `
				INSERT INTO categories (id, name) VALUES ($1, $2)
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id`,
				uuid.New(), item.CategoryName,
			).Scan(&categoryID)
			if err != nil {
				return fmt.Errorf("failed to resolve category: %w", err)
			}
			item.CategoryID = &categoryID
		}

		query, args, err := psql.Insert("items").
			Columns("id", "name", "description", "category_id", "tags", "status", "unit_value", "created_at", "updated_at").
			Values(item.ID, item.Name, item.Description, item.CategoryID, nonNil(item.Tags),
				string(item.Status), item.UnitValue, item.CreatedAt, item.UpdatedAt).
			Suffix(`ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				category_id = EXCLUDED.category_id,
				tags = EXCLUDED.tags,
				status = EXCLUDED.status,
				unit_value = EXCLUDED.unit_value,
				updated_at = EXCLUDED.updated_at
			WHERE items.deleted_at IS NULL
			RETURNING created_at`).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build query: %w", err)
		}

		if err := tx.QueryRow(ctx, query, args...).Scan(&item.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.NotFoundError("item", item.ID)
			}
			return fmt.Errorf("failed to save item: %w", err)
		}

		s.logger.DebugContext(ctx, "item saved", slog.String("item_id", item.ID.String()))
		return nil
	})
}

// DeleteItem soft deletes a live item
func (s *InventoryStore) DeleteItem(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE items SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFoundError("item", id)
	}
	return nil
}

// SaveLocation upserts the location
func (s *InventoryStore) SaveLocation(ctx context.Context, loc *domain.Location) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO locations (id, parent_id, name, tier, capacity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			name = EXCLUDED.name,
			tier = EXCLUDED.tier,
			capacity = EXCLUDED.capacity`,
		loc.ID, loc.ParentID, loc.Name, int16(loc.Tier), loc.Capacity, loc.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation && loc.ParentID != nil {
			return domain.NotFoundError("location", *loc.ParentID)
		}
		return fmt.Errorf("failed to save location: %w", err)
	}
	return nil
}

// ItemRecords returns every record of the item, zero quantities included
func (s *InventoryStore) ItemRecords(ctx context.Context, itemID uuid.UUID) ([]domain.InventoryRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT item_id, location_id, quantity, updated_at
		FROM inventory_records WHERE item_id = $1
		ORDER BY location_id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load item records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.InventoryRecord, 0)
	for rows.Next() {
		var rec domain.InventoryRecord
		if err := rows.Scan(&rec.ItemID, &rec.LocationID, &rec.Quantity, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ItemLocations returns the path of every location holding the item
func (s *InventoryStore) ItemLocations(ctx context.Context, itemID uuid.UUID) ([]domain.LocationPath, error) {
	rows, err := s.db.Query(ctx,
		`SELECT location_id FROM inventory_records WHERE item_id = $1 AND quantity > 0 ORDER BY location_id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load item locations: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan item locations: %w", err)
	}

	paths := make([]domain.LocationPath, 0, len(ids))
	for _, id := range ids {
		path, err := s.LocationPath(ctx, id)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ListItemsUpdatedSince pages items, deleted ones included, in (updated_at, id) order
func (s *InventoryStore) ListItemsUpdatedSince(ctx context.Context, since time.Time, after *domain.ItemCursor, limit int) ([]domain.Item, error) {
	qb := itemQuery().
		Where(squirrel.GtOrEq{"i.updated_at": since}).
		OrderBy("i.updated_at", "i.id")
	if after != nil {
		qb = qb.Where("(i.updated_at, i.id) > (?, ?)", after.UpdatedAt, after.ID)
	}
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ListMovements returns the movement log, newest first
func (s *InventoryStore) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.MovementLogEntry, error) {
	qb := psql.Select(movementColumns...).From("movement_log").OrderBy("created_at DESC", "id")
	if filter.ItemID != nil {
		qb = qb.Where("item_id = ?", *filter.ItemID)
	}
	if filter.From != nil {
		qb = qb.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		qb = qb.Where(squirrel.LtOrEq{"created_at": *filter.To})
	}
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return collectMovements(rows)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
