package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/store"
)

// ItemStore implements store.ItemStore using PostgreSQL. Reads join the
// optimizations table so returned items carry their OptimizationCount.
type ItemStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewItemStore creates a PostgreSQL implementation of store.ItemStore. The
// caller owns the database handle or transaction.
func NewItemStore(db store.DBTX, logger *slog.Logger) *ItemStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemStore{
		db:     db,
		logger: logger.With(slog.String("component", "item_store")),
	}
}

var _ store.ItemStore = (*ItemStore)(nil)

const itemColumns = `
	i.id, i.user_id, i.collection_id, i.kind, i.title, i.content,
	(SELECT COUNT(*) FROM optimizations o WHERE o.item_id = i.id) AS optimization_count,
	i.created_at, i.updated_at
`

// GetByID retrieves an item by ID. Returns store.ErrItemNotFound if absent.
func (s *ItemStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items i WHERE i.id = $1`

	item, err := scanItem(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrItemNotFound
		}
		s.logger.Error("failed to get item",
			slog.String("item_id", id.String()),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return item, nil
}

// Create persists a new item.
func (s *ItemStore) Create(ctx context.Context, item *domain.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO items (id, user_id, collection_id, kind, title, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		item.ID, item.UserID, item.CollectionID, item.Kind,
		item.Title, item.Content, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		s.logger.Error("failed to create item",
			slog.String("item_id", item.ID.String()),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	s.logger.Debug("item created",
		slog.String("item_id", item.ID.String()),
		slog.String("kind", string(item.Kind)))
	return nil
}

// ListByUser returns the user's items, newest first, capped at limit when
// limit > 0.
func (s *ItemStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM items i
		WHERE i.user_id = $1
		ORDER BY i.created_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	return s.list(ctx, query, args...)
}

// ListByCollection returns the user's items in one collection, newest first,
// capped at limit when limit > 0.
func (s *ItemStore) ListByCollection(ctx context.Context, userID, collectionID uuid.UUID, limit int) ([]*domain.Item, error) {
	query := `SELECT ` + itemColumns + `
		FROM items i
		WHERE i.user_id = $1 AND i.collection_id = $2
		ORDER BY i.created_at DESC`
	args := []interface{}{userID, collectionID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	return s.list(ctx, query, args...)
}

func (s *ItemStore) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return items, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	var kind string
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.CollectionID,
		&kind,
		&item.Title,
		&item.Content,
		&item.OptimizationCount,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Kind = domain.ItemKind(kind)
	return &item, nil
}
