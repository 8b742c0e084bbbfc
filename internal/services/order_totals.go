package services

import (
	"fmt"
	"math"

	domain "github.com/boutique-admin/api/internal/domain"
)

// OrderAdjustments are the shipping, tax and discount amounts of an order in
// minor units. Nil fields are "not supplied".
type OrderAdjustments struct {
	Shipping *int64
	Tax      *int64
	Discount *int64
}

// LineTotal returns unitPrice x quantity, failing on overflow.
func LineTotal(unitPrice int64, quantity int) (int64, error) {
	return mulMinor(unitPrice, int64(quantity))
}

// ComputeOrderTotals derives subtotal from the submitted line items and the
// total from subtotal + shipping + tax - discount. Omitted adjustments are zero.
func ComputeOrderTotals(items []OrderItem, adj OrderAdjustments) (OrderTotals, error) {
	var subtotal int64
	for _, item := range items {
		line, err := LineTotal(item.UnitPrice, item.Quantity)
		if err != nil {
			return OrderTotals{}, err
		}
		if subtotal, err = addMinor(subtotal, line); err != nil {
			return OrderTotals{}, err
		}
	}
	return applyAdjustments(subtotal, OrderTotals{}, adj)
}

// RecomputeOrderTotals keeps the stored subtotal and merges adj over the stored
// adjustments: supplied fields override, omitted ones keep their value.
func RecomputeOrderTotals(stored OrderTotals, adj OrderAdjustments) (OrderTotals, error) {
	return applyAdjustments(stored.Subtotal, stored, adj)
}

func applyAdjustments(subtotal int64, base OrderTotals, adj OrderAdjustments) (OrderTotals, error) {
	totals := OrderTotals{
		Subtotal: subtotal,
		Shipping: base.Shipping,
		Tax:      base.Tax,
		Discount: base.Discount,
	}
	if adj.Shipping != nil {
		totals.Shipping = *adj.Shipping
	}
	if adj.Tax != nil {
		totals.Tax = *adj.Tax
	}
	if adj.Discount != nil {
		totals.Discount = *adj.Discount
	}

	total, err := addMinor(totals.Subtotal, totals.Shipping)
	if err != nil {
		return OrderTotals{}, err
	}
	if total, err = addMinor(total, totals.Tax); err != nil {
		return OrderTotals{}, err
	}
	if total, err = addMinor(total, -totals.Discount); err != nil {
		return OrderTotals{}, err
	}
	totals.Total = total
	return totals, nil
}

func addMinor(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("%w: %d + %d", domain.ErrAmountOverflow, a, b)
	}
	return a + b, nil
}

func mulMinor(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	result := a * b
	if result/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, fmt.Errorf("%w: %d x %d", domain.ErrAmountOverflow, a, b)
	}
	return result, nil
}
