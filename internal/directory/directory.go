package directory

import (
	"context"
	"database/sql"

	"github.com/karimelassali/baraka-dispatch/internal/models"
)

// Directory is the read-only customer store the audience resolver queries.
// The admin console's CRUD screens own the data; this service never writes it.
type Directory interface {
	FindAll(ctx context.Context, filter models.CustomerFilter) ([]models.Customer, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Customer, error)
	Count(ctx context.Context, filter models.CustomerFilter) (int, error)
}

// SQLDirectory serves the directory from the shared SQLite database.
type SQLDirectory struct {
	db *sql.DB
}

func NewSQLDirectory(db *sql.DB) *SQLDirectory {
	return &SQLDirectory{db: db}
}

func buildFilter(filter models.CustomerFilter) (string, []any) {
	where := " WHERE 1=1"
	args := []any{}

	if filter.Nationality != "" {
		where += " AND nationality = ?"
		args = append(args, filter.Nationality)
	}
	if filter.MinPoints > 0 {
		where += " AND points >= ?"
		args = append(args, filter.MinPoints)
	}
	if filter.RequireContact {
		where += " AND contact != ''"
	}

	return where, args
}

// FindAll returns customers matching the filter, oldest first for stable
// recipient ordering across repeated resolves.
func (d *SQLDirectory) FindAll(ctx context.Context, filter models.CustomerFilter) ([]models.Customer, error) {
	where, args := buildFilter(filter)

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, contact, display_name, nationality, points, created_at
		FROM customers`+where+`
		ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCustomers(rows)
}

// FindByIDs returns the customers whose ids exist; missing ids are simply
// absent from the result.
func (d *SQLDirectory) FindByIDs(ctx context.Context, ids []string) ([]models.Customer, error) {
	if len(ids) == 0 {
		return []models.Customer{}, nil
	}

	query := `
		SELECT id, contact, display_name, nationality, points, created_at
		FROM customers WHERE id IN (?` // expanded below
	args := []any{ids[0]}
	for _, id := range ids[1:] {
		query += ", ?"
		args = append(args, id)
	}
	query += ")"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCustomers(rows)
}

// Count returns the number of customers matching the filter. Shares the WHERE
// clause with FindAll so audience previews cannot diverge from resolves.
func (d *SQLDirectory) Count(ctx context.Context, filter models.CustomerFilter) (int, error) {
	where, args := buildFilter(filter)

	var total int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customers"+where, args...).Scan(&total)
	return total, err
}

func scanCustomers(rows *sql.Rows) ([]models.Customer, error) {
	customers := []models.Customer{}
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Contact, &c.DisplayName, &c.Nationality, &c.Points, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}
