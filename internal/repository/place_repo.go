package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nineylabs/placefeed/internal/models"
)

// SQLitePlaceRepository implements PlaceRepository for SQLite.
type SQLitePlaceRepository struct {
	db *sql.DB
}

// NewSQLitePlaceRepository creates a new SQLite place repository.
func NewSQLitePlaceRepository(db *sql.DB) *SQLitePlaceRepository {
	return &SQLitePlaceRepository{db: db}
}

const placeColumns = `id, name, url, category, address, created_at, updated_at`

func (r *SQLitePlaceRepository) Create(ctx context.Context, place *models.Place) error {
	query := `INSERT INTO places (` + placeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		place.ID,
		place.Name,
		place.URL,
		nullString(place.Category),
		nullString(place.Address),
		place.CreatedAt.Format(time.RFC3339),
		place.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create place: %w", err)
	}
	return nil
}

func (r *SQLitePlaceRepository) GetByID(ctx context.Context, id string) (*models.Place, error) {
	query := `SELECT ` + placeColumns + ` FROM places WHERE id = ?`
	place, err := scanPlace(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return place, err
}

func (r *SQLitePlaceRepository) Update(ctx context.Context, place *models.Place) error {
	query := `UPDATE places SET name = ?, url = ?, category = ?, address = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query,
		place.Name,
		place.URL,
		nullString(place.Category),
		nullString(place.Address),
		time.Now().Format(time.RFC3339),
		place.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update place: %w", err)
	}
	return nil
}

func (r *SQLitePlaceRepository) List(ctx context.Context, limit, offset int) ([]*models.Place, error) {
	query := `SELECT ` + placeColumns + ` FROM places ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer rows.Close()

	var places []*models.Place
	for rows.Next() {
		place, err := scanPlace(rows)
		if err != nil {
			return nil, err
		}
		places = append(places, place)
	}
	return places, rows.Err()
}

func scanPlace(s scanner) (*models.Place, error) {
	var place models.Place
	var category, address sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&place.ID, &place.Name, &place.URL, &category, &address, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan place: %w", err)
	}

	place.Category = category.String
	place.Address = address.String
	place.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	place.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &place, nil
}
