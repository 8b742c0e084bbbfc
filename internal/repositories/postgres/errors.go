package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/boutique-admin/api/internal/repositories"
)

// constraintFields maps constraint and unique index names from the migrations
// to the field reported on conflict errors.
var constraintFields = map[string]string{
	"categories_pkey":                         "id",
	"categories_parent_name_key":              "name",
	"categories_parent_id_fkey":               "parent_id",
	"brands_pkey":                             "id",
	"brands_name_key":                         "name",
	"products_pkey":                           "id",
	"products_sku_key":                        "sku",
	"products_slug_key":                       "slug",
	"products_category_id_fkey":               "category_id",
	"products_brand_id_fkey":                  "brand_id",
	"product_variants_pkey":                   "id",
	"product_variants_product_id_fkey":        "product_id",
	"product_variants_product_size_color_key": "variant",
	"orders_pkey":                             "id",
	"orders_order_number_key":                 "order_number",
	"orders_client_id_fkey":                   "client_id",
	"orders_shipping_address_id_fkey":         "shipping_address_id",
	"orders_billing_address_id_fkey":          "billing_address_id",
	"order_items_product_id_fkey":             "product_id",
	"order_items_variant_id_fkey":             "variant_id",
}

// wrapError annotates driver errors with repository semantics. Context
// cancellations are passed through untouched.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr *repositories.Error
	if errors.As(err, &repoErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repositories.NewNotFoundError(op, "row not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505" || pgErr.Code == "23503":
			return repositories.NewFieldConflictError(op, constraintFields[pgErr.ConstraintName], err)
		case pgErr.Code == "40001" || pgErr.Code == "40P01":
			return repositories.NewConflictError(op, "concurrent update", err)
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "53300",
			pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return repositories.NewUnavailableError(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return repositories.NewUnavailableError(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFound(op, kind, id string) error {
	return repositories.NewNotFoundError(op, fmt.Sprintf("%s %s not found", kind, id))
}

// expectRow turns a zero rows-affected result into a not-found error.
func expectRow(op, kind, id string, res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapError(op, err)
	}
	if affected == 0 {
		return notFound(op, kind, id)
	}
	return nil
}
