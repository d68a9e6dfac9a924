package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/app-scaffold/internal/domain"
	"github.com/prperemyshlev/app-scaffold/pkg/database"
)

const itemColumns = `id, name, description, price, user_id, created_at, updated_at`

// itemRepository implements ItemRepository interface
type itemRepository struct {
	db *database.Postgres
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.Postgres) ItemRepository {
	return &itemRepository{db: db}
}

// Create inserts a new item
func (r *itemRepository) Create(ctx context.Context, item *domain.Item) error {
	query := `
		INSERT INTO items (id, name, description, price, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := r.db.DB.ExecContext(ctx, query,
		item.ID,
		item.Name,
		item.Description,
		item.Price,
		item.UserID,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}

	return nil
}

// GetByID retrieves an item owned by ownerID. Items of other users are reported as not found.
func (r *itemRepository) GetByID(ctx context.Context, ownerID, id string) (*domain.Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("item %s not found: %w", id, ErrNotFound)
	}

	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 AND user_id = $2`

	item, err := scanItem(r.db.DB.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %s not found: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

// ListByUser returns one page of the owner's items, newest first, and the total count
func (r *itemRepository) ListByUser(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Item, int, error) {
	var total int
	if err := r.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE user_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.DB.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.Item, 0, limit)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, total, nil
}

// Update writes name, description and price of an owned item
func (r *itemRepository) Update(ctx context.Context, item *domain.Item) error {
	query := `
		UPDATE items
		SET name = $1, description = $2, price = $3, updated_at = $4
		WHERE id = $5 AND user_id = $6
	`

	item.UpdatedAt = time.Now().UTC()

	result, err := r.db.DB.ExecContext(ctx, query,
		item.Name,
		item.Description,
		item.Price,
		item.UpdatedAt,
		item.ID,
		item.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	return expectOneRow(result, "item", item.ID)
}

// Delete removes an owned item
func (r *itemRepository) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("item %s not found: %w", id, ErrNotFound)
	}

	result, err := r.db.DB.ExecContext(ctx, `DELETE FROM items WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	return expectOneRow(result, "item", id)
}

func scanItem(row rowScanner) (*domain.Item, error) {
	item := &domain.Item{}
	var (
		description sql.NullString
		price       sql.NullFloat64
	)

	err := row.Scan(
		&item.ID,
		&item.Name,
		&description,
		&price,
		&item.UserID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Description = nullableString(description)
	if price.Valid {
		item.Price = &price.Float64
	}

	return item, nil
}
