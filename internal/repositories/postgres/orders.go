package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/platform/database"
	"github.com/boutique-admin/api/internal/repositories"
)

type orderRepository struct{ r *Registry }

const orderColumns = `o.id, o.order_number, o.client_id, o.shipping_address_id, o.billing_address_id, o.status,
	o.payment_status, o.payment_method, o.currency, o.subtotal, o.shipping_cost, o.tax_amount,
	o.discount_amount, o.total_amount, o.notes, o.created_at, o.updated_at`

const orderItemColumns = `id, order_id, product_id, variant_id, quantity, unit_price, total_price,
	product_name, product_sku, variant_info`

// Insert writes the header and the items in one transaction, joining the caller's when present.
func (repo orderRepository) Insert(ctx context.Context, order domain.Order) error {
	const op = "orders.insert"
	return database.RunInTx(ctx, repo.r.db, func(ctx context.Context) error {
		q := repo.r.conn(ctx)
		var method sql.NullString
		if order.PaymentMethod != nil {
			method = sql.NullString{String: string(*order.PaymentMethod), Valid: true}
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO orders (id, order_number, client_id, shipping_address_id, billing_address_id, status,
				payment_status, payment_method, currency, subtotal, shipping_cost, tax_amount, discount_amount,
				total_amount, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`, order.ID, order.OrderNumber, order.ClientID, order.ShippingAddressID, order.BillingAddressID,
			string(order.Status), string(order.PaymentStatus), method, order.Currency, order.Totals.Subtotal,
			order.Totals.Shipping, order.Totals.Tax, order.Totals.Discount, order.Totals.Total,
			nullString(order.Notes), order.CreatedAt, order.UpdatedAt)
		if err != nil {
			return wrapError(op, err)
		}

		for i, item := range order.Items {
			var info []byte
			if item.VariantInfo != nil {
				if info, err = json.Marshal(item.VariantInfo); err != nil {
					return fmt.Errorf("%s: encode variant info: %w", op, err)
				}
			}
			_, err = q.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, position, product_id, variant_id, quantity, unit_price,
					total_price, product_name, product_sku, variant_info)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`, item.ID, order.ID, i, nullString(item.ProductID), nullString(item.VariantID), item.Quantity,
				item.UnitPrice, item.TotalPrice, item.ProductName, item.ProductSKU, info)
			if err != nil {
				return wrapError(op, err)
			}
		}
		return nil
	})
}

// Update rewrites the header; the stored items are kept as they are.
func (repo orderRepository) Update(ctx context.Context, order domain.Order) error {
	const op = "orders.update"
	var method sql.NullString
	if order.PaymentMethod != nil {
		method = sql.NullString{String: string(*order.PaymentMethod), Valid: true}
	}
	res, err := repo.r.conn(ctx).ExecContext(ctx, `
		UPDATE orders SET
			status = $2, payment_status = $3, payment_method = $4, subtotal = $5, shipping_cost = $6,
			tax_amount = $7, discount_amount = $8, total_amount = $9, notes = $10, updated_at = $11
		WHERE id = $1
	`, order.ID, string(order.Status), string(order.PaymentStatus), method, order.Totals.Subtotal,
		order.Totals.Shipping, order.Totals.Tax, order.Totals.Discount, order.Totals.Total,
		nullString(order.Notes), order.UpdatedAt)
	if err != nil {
		return wrapError(op, err)
	}
	return expectRow(op, "order", order.ID, res)
}

// Delete removes the order; items go with it through the cascade.
func (repo orderRepository) Delete(ctx context.Context, orderID string) error {
	const op = "orders.delete"
	res, err := repo.r.conn(ctx).ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return wrapError(op, err)
	}
	return expectRow(op, "order", orderID, res)
}

func (repo orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	const op = "orders.find"
	q := repo.r.conn(ctx)
	order, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, orderID))
	if err == sql.ErrNoRows {
		return domain.Order{}, notFound(op, "order", orderID)
	}
	if err != nil {
		return domain.Order{}, wrapError(op, err)
	}
	orders := []domain.Order{order}
	if err := repo.attachItems(ctx, q, orders); err != nil {
		return domain.Order{}, wrapError(op, err)
	}
	return orders[0], nil
}

func (repo orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	const op = "orders.list"
	var w where
	if filter.ClientID != nil {
		w.add("o.client_id = " + w.arg(*filter.ClientID))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		w.add("o.status = ANY(" + w.arg(statuses) + ")")
	}
	if len(filter.PaymentStatus) > 0 {
		statuses := make([]string, len(filter.PaymentStatus))
		for i, s := range filter.PaymentStatus {
			statuses[i] = string(s)
		}
		w.add("o.payment_status = ANY(" + w.arg(statuses) + ")")
	}
	if filter.DateRange.From != nil {
		w.add("o.created_at >= " + w.arg(*filter.DateRange.From))
	}
	if filter.DateRange.To != nil {
		w.add("o.created_at <= " + w.arg(*filter.DateRange.To))
	}
	if filter.Search != nil {
		pattern := w.arg(like(*filter.Search))
		w.add(fmt.Sprintf("(o.order_number ILIKE %[1]s OR c.first_name ILIKE %[1]s OR c.last_name ILIKE %[1]s)", pattern))
	}
	limitClause, offset, limit, err := window(&w, filter.Pagination)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, fmt.Errorf("%s: %w", op, err)
	}

	q := repo.r.conn(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o LEFT JOIN clients c ON c.id = o.client_id`+w.String()+`
		ORDER BY o.created_at DESC, o.id DESC`+limitClause, w.args...)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, wrapError(op, err)
	}
	var items []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return domain.CursorPage[domain.Order]{}, wrapError(op, err)
		}
		items = append(items, order)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Order]{}, wrapError(op, err)
	}

	result := page(items, offset, limit)
	if err := repo.attachItems(ctx, q, result.Items); err != nil {
		return domain.CursorPage[domain.Order]{}, wrapError(op, err)
	}
	return result, nil
}

// attachItems loads the items of every order in one query, preserving insertion order.
func (repo orderRepository) attachItems(ctx context.Context, q database.Querier, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
		index[order.ID] = i
		orders[i].Items = []domain.OrderItem{}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+orderItemColumns+` FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return err
		}
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}
	return rows.Err()
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o             domain.Order
		status, pay   string
		method, notes sql.NullString
	)
	if err := row.Scan(&o.ID, &o.OrderNumber, &o.ClientID, &o.ShippingAddressID, &o.BillingAddressID, &status,
		&pay, &method, &o.Currency, &o.Totals.Subtotal, &o.Totals.Shipping, &o.Totals.Tax, &o.Totals.Discount,
		&o.Totals.Total, &notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(pay)
	if method.Valid {
		m := domain.PaymentMethod(method.String)
		o.PaymentMethod = &m
	}
	o.Notes = stringPtr(notes)
	return o, nil
}

func scanOrderItem(row rowScanner) (domain.OrderItem, error) {
	var (
		item               domain.OrderItem
		productID, variant sql.NullString
		info               []byte
	)
	if err := row.Scan(&item.ID, &item.OrderID, &productID, &variant, &item.Quantity, &item.UnitPrice,
		&item.TotalPrice, &item.ProductName, &item.ProductSKU, &info); err != nil {
		return domain.OrderItem{}, err
	}
	item.ProductID = stringPtr(productID)
	item.VariantID = stringPtr(variant)
	if len(info) > 0 {
		var vi domain.VariantInfo
		if err := json.Unmarshal(info, &vi); err != nil {
			return domain.OrderItem{}, fmt.Errorf("decode variant info: %w", err)
		}
		item.VariantInfo = &vi
	}
	return item, nil
}

type clientRepository struct{ r *Registry }

func (repo clientRepository) FindByID(ctx context.Context, clientID string) (domain.Client, error) {
	const op = "clients.find"
	var (
		c     domain.Client
		phone sql.NullString
	)
	err := repo.r.conn(ctx).QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email, phone FROM clients WHERE id = $1`, clientID,
	).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &phone)
	if err == sql.ErrNoRows {
		return domain.Client{}, notFound(op, "client", clientID)
	}
	if err != nil {
		return domain.Client{}, wrapError(op, err)
	}
	c.Phone = stringPtr(phone)
	return c, nil
}

type addressRepository struct{ r *Registry }

func (repo addressRepository) FindByID(ctx context.Context, addressID string) (domain.Address, error) {
	const op = "addresses.find"
	var (
		a                   domain.Address
		line2, state, phone sql.NullString
	)
	err := repo.r.conn(ctx).QueryRowContext(ctx, `
		SELECT id, client_id, recipient, line1, line2, city, state, postal_code, country, phone
		FROM addresses WHERE id = $1
	`, addressID).Scan(&a.ID, &a.ClientID, &a.Recipient, &a.Line1, &line2, &a.City, &state,
		&a.PostalCode, &a.Country, &phone)
	if err == sql.ErrNoRows {
		return domain.Address{}, notFound(op, "address", addressID)
	}
	if err != nil {
		return domain.Address{}, wrapError(op, err)
	}
	a.Line2 = stringPtr(line2)
	a.State = stringPtr(state)
	a.Phone = stringPtr(phone)
	return a, nil
}
