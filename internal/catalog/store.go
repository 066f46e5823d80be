package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGQueries reads the live catalog from Postgres.
type PGQueries struct {
	DB pgQuerier
}

const listServicesByBusiness = `
SELECT id, name, price, category, preparation_time
FROM pressing_services
WHERE business_id = $1 AND active
ORDER BY position, name, id`

// ListServicesByBusiness returns active services of a business in display order.
func (q PGQueries) ListServicesByBusiness(ctx context.Context, businessID string) ([]Service, error) {
	if q.DB == nil {
		return nil, errors.New("catalog: database not configured")
	}
	rows, err := q.DB.Query(ctx, listServicesByBusiness, businessID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Service, error) {
		var s Service
		err := row.Scan(&s.ID, &s.Name, &s.Price, &s.Category, &s.PreparationTime)
		if s.Price < 0 {
			s.Price = 0
		}
		return s, err
	})
}

const upsertService = `
INSERT INTO pressing_services (business_id, id, name, price, category, preparation_time, position, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
ON CONFLICT (business_id, id) DO UPDATE
SET name = EXCLUDED.name,
    price = EXCLUDED.price,
    category = EXCLUDED.category,
    preparation_time = EXCLUDED.preparation_time,
    position = EXCLUDED.position,
    active = TRUE`

// UpsertServices writes services for a business, preserving slice order as
// display position. Used by seeding and catalog imports.
func (q PGQueries) UpsertServices(ctx context.Context, businessID string, services []Service) error {
	if q.DB == nil {
		return errors.New("catalog: database not configured")
	}
	for i, s := range services {
		if _, err := q.DB.Exec(ctx, upsertService, businessID, s.ID, s.Name, s.Price, s.Category, s.PreparationTime, i); err != nil {
			return err
		}
	}
	return nil
}
