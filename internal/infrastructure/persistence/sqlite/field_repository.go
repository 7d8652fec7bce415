package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/carbonbits/farmdb/internal/application/ports"
	"github.com/carbonbits/farmdb/internal/domain"
)

type FieldRepository struct {
	db *sql.DB
}

func NewFieldRepository(db *sql.DB) *FieldRepository {
	return &FieldRepository{db: db}
}

func (r *FieldRepository) Create(ctx context.Context, field *domain.FarmField) error {
	query := `INSERT INTO fields (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		field.ID, field.Name, nullString(field.Description), field.CreatedAt, field.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert field: %w", err)
	}
	return nil
}

func (r *FieldRepository) List(ctx context.Context) ([]*domain.FarmField, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM fields ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	defer rows.Close()

	var out []*domain.FarmField
	for rows.Next() {
		var f domain.FarmField
		var description sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &description, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.Description = description.String
		out = append(out, &f)
	}
	return out, rows.Err()
}

var _ ports.FieldRepository = (*FieldRepository)(nil)
