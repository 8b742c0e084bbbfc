// Package postgres implements the repository registry on PostgreSQL through
// the pgx database/sql driver. Repositories join the transaction carried by
// the context, so services group writes with Registry.RunInTx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/platform/database"
	"github.com/boutique-admin/api/internal/platform/pagination"
	"github.com/boutique-admin/api/internal/repositories"
)

const defaultPingTimeout = 1500 * time.Millisecond

// Registry is the Postgres backed repositories.Registry.
type Registry struct {
	db     *sql.DB
	health repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// Option customises the registry.
type Option func(*registryOptions)

type registryOptions struct {
	checks []repositories.DependencyCheck
}

// WithHealthChecks adds dependency probes reported next to the database ping.
func WithHealthChecks(checks ...repositories.DependencyCheck) Option {
	return func(o *registryOptions) {
		o.checks = append(o.checks, checks...)
	}
}

// New wraps an open pool.
func New(db *sql.DB, opts ...Option) (*Registry, error) {
	if db == nil {
		return nil, errors.New("postgres: db is required")
	}
	var options registryOptions
	for _, opt := range opts {
		opt(&options)
	}
	checks := append([]repositories.DependencyCheck{{
		Name:     "postgres",
		Timeout:  defaultPingTimeout,
		Critical: true,
		Check:    database.PingCheck(db),
	}}, options.checks...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return &Registry{db: db, health: health}, nil
}

// RunInTx groups repository calls made with the supplied context into one transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.RunInTx(ctx, r.db, fn)
}

// Close closes the pool.
func (r *Registry) Close(context.Context) error {
	return r.db.Close()
}

func (r *Registry) Categories() repositories.CategoryRepository { return categoryRepository{r} }
func (r *Registry) Brands() repositories.BrandRepository         { return brandRepository{r} }
func (r *Registry) Products() repositories.ProductRepository     { return productRepository{r} }
func (r *Registry) Variants() repositories.VariantRepository     { return variantRepository{r} }
func (r *Registry) Orders() repositories.OrderRepository         { return orderRepository{r} }
func (r *Registry) Clients() repositories.ClientRepository       { return clientRepository{r} }
func (r *Registry) Addresses() repositories.AddressRepository    { return addressRepository{r} }
func (r *Registry) Health() repositories.HealthRepository        { return r.health }

func (r *Registry) conn(ctx context.Context) database.Querier {
	return database.Conn(ctx, r.db)
}

// arrays scans TEXT[] columns into Go slices. A pgtype.Map is not safe for
// concurrent use, so each query takes its own.
type arrays struct{ m *pgtype.Map }

func newArrays() arrays { return arrays{m: pgtype.NewMap()} }

func (a arrays) text(dst *[]string) sql.Scanner {
	return a.m.SQLScanner(dst)
}

// where accumulates predicates with positional placeholders.
type where struct {
	clauses []string
	args    []any
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// like builds a case-insensitive substring pattern with LIKE metacharacters escaped.
func like(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(term) + "%"
}

// window appends LIMIT/OFFSET for the page and returns the bounds used.
func window(w *where, p domain.Pagination) (clause string, offset, limit int, err error) {
	offset, limit, err = pagination.Window(p.PageSize, p.PageToken)
	if err != nil {
		return "", 0, 0, err
	}
	return fmt.Sprintf(" LIMIT %s OFFSET %s", w.arg(limit+1), w.arg(offset)), offset, limit, nil
}

func page[T any](items []T, offset, limit int) domain.CursorPage[T] {
	out := domain.CursorPage[T]{NextPageToken: pagination.NextToken(offset, limit, len(items))}
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []T{}
	}
	out.Items = items
	return out
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
