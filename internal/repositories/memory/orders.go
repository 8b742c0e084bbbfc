package memory

import (
	"cmp"
	"context"
	"slices"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/repositories"
)

type orderRepository struct{ s *Store }

func (r orderRepository) Insert(ctx context.Context, order domain.Order) error {
	const op = "orders.insert"
	return r.s.write(ctx, op, func(d *dataset) error {
		if _, exists := d.orders[order.ID]; exists {
			return repositories.NewFieldConflictError(op, "id", nil)
		}
		for _, other := range d.orders {
			if other.OrderNumber == order.OrderNumber {
				return repositories.NewFieldConflictError(op, "order_number", nil)
			}
		}
		if _, ok := d.clients[order.ClientID]; !ok {
			return repositories.NewFieldConflictError(op, "client_id", nil)
		}
		for _, item := range order.Items {
			if item.ProductID != nil {
				if _, ok := d.products[*item.ProductID]; !ok {
					return repositories.NewFieldConflictError(op, "product_id", nil)
				}
			}
			if item.VariantID != nil {
				if _, ok := d.variants[*item.VariantID]; !ok {
					return repositories.NewFieldConflictError(op, "variant_id", nil)
				}
			}
		}
		d.orders[order.ID] = storedOrder(order)
		return nil
	})
}

// Update rewrites the header; the stored items are kept as they are.
func (r orderRepository) Update(ctx context.Context, order domain.Order) error {
	const op = "orders.update"
	return r.s.write(ctx, op, func(d *dataset) error {
		existing, exists := d.orders[order.ID]
		if !exists {
			return notFound(op, "order", order.ID)
		}
		existing.Status = order.Status
		existing.PaymentStatus = order.PaymentStatus
		existing.PaymentMethod = order.PaymentMethod
		existing.Totals = order.Totals
		existing.Notes = order.Notes
		existing.UpdatedAt = order.UpdatedAt
		d.orders[order.ID] = existing
		return nil
	})
}

func (r orderRepository) Delete(ctx context.Context, orderID string) error {
	const op = "orders.delete"
	return r.s.write(ctx, op, func(d *dataset) error {
		if _, exists := d.orders[orderID]; !exists {
			return notFound(op, "order", orderID)
		}
		delete(d.orders, orderID)
		return nil
	})
}

func (r orderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	const op = "orders.find"
	var order domain.Order
	err := r.s.read(op, func(d *dataset) error {
		found, ok := d.orders[orderID]
		if !ok {
			return notFound(op, "order", orderID)
		}
		order = storedOrder(found)
		return nil
	})
	return order, err
}

func (r orderRepository) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	const op = "orders.list"
	var matched []domain.Order
	err := r.s.read(op, func(d *dataset) error {
		for _, order := range d.orders {
			if orderMatches(d, order, filter) {
				matched = append(matched, storedOrder(order))
			}
		}
		return nil
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	slices.SortFunc(matched, func(a, b domain.Order) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return paginate(op, matched, filter.Pagination)
}

func orderMatches(d *dataset, order domain.Order, filter repositories.OrderListFilter) bool {
	switch {
	case filter.ClientID != nil && order.ClientID != *filter.ClientID:
		return false
	case len(filter.Status) > 0 && !slices.Contains(filter.Status, order.Status):
		return false
	case len(filter.PaymentStatus) > 0 && !slices.Contains(filter.PaymentStatus, order.PaymentStatus):
		return false
	case filter.DateRange.From != nil && order.CreatedAt.Before(*filter.DateRange.From):
		return false
	case filter.DateRange.To != nil && order.CreatedAt.After(*filter.DateRange.To):
		return false
	}
	if filter.Search == nil {
		return true
	}
	q := *filter.Search
	if containsFold(order.OrderNumber, q) {
		return true
	}
	client, ok := d.clients[order.ClientID]
	return ok && (containsFold(client.FirstName, q) || containsFold(client.LastName, q))
}

func storedOrder(order domain.Order) domain.Order {
	order.Client = nil
	order.ShippingAddress = nil
	order.BillingAddress = nil
	items := make([]domain.OrderItem, len(order.Items))
	for i, item := range order.Items {
		item.Product = nil
		item.Variant = nil
		if item.VariantInfo != nil {
			info := *item.VariantInfo
			item.VariantInfo = &info
		}
		items[i] = item
	}
	order.Items = items
	return order
}

type clientRepository struct{ s *Store }

func (r clientRepository) FindByID(_ context.Context, clientID string) (domain.Client, error) {
	const op = "clients.find"
	var client domain.Client
	err := r.s.read(op, func(d *dataset) error {
		found, ok := d.clients[clientID]
		if !ok {
			return notFound(op, "client", clientID)
		}
		client = found
		return nil
	})
	return client, err
}

type addressRepository struct{ s *Store }

func (r addressRepository) FindByID(_ context.Context, addressID string) (domain.Address, error) {
	const op = "addresses.find"
	var address domain.Address
	err := r.s.read(op, func(d *dataset) error {
		found, ok := d.addresses[addressID]
		if !ok {
			return notFound(op, "address", addressID)
		}
		address = found
		return nil
	})
	return address, err
}
