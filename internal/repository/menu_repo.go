package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nineylabs/placefeed/internal/models"
)

// SQLiteMenuItemRepository implements MenuItemRepository for SQLite.
type SQLiteMenuItemRepository struct {
	db *sql.DB
}

// NewSQLiteMenuItemRepository creates a new SQLite menu item repository.
func NewSQLiteMenuItemRepository(db *sql.DB) *SQLiteMenuItemRepository {
	return &SQLiteMenuItemRepository{db: db}
}

func (r *SQLiteMenuItemRepository) Upsert(ctx context.Context, item *models.MenuItem) error {
	query := `
		INSERT INTO menu_items (id, place_id, name, price, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(place_id, name) DO UPDATE SET
			price = excluded.price,
			description = excluded.description
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		item.PlaceID,
		item.Name,
		nullString(item.Price),
		nullString(item.Description),
		item.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert menu item: %w", err)
	}
	return nil
}

func (r *SQLiteMenuItemRepository) ListByPlace(ctx context.Context, placeID string) ([]*models.MenuItem, error) {
	query := `
		SELECT id, place_id, name, price, description, created_at
		FROM menu_items WHERE place_id = ? ORDER BY name ASC
	`
	rows, err := r.db.QueryContext(ctx, query, placeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}
	defer rows.Close()

	var items []*models.MenuItem
	for rows.Next() {
		var item models.MenuItem
		var price, description sql.NullString
		var createdAt string
		if err := rows.Scan(&item.ID, &item.PlaceID, &item.Name, &price, &description, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		item.Price = price.String
		item.Description = description.String
		item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		items = append(items, &item)
	}
	return items, rows.Err()
}
