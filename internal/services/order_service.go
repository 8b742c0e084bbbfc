package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/platform/textutil"
	"github.com/boutique-admin/api/internal/repositories"
)

const (
	maxOrderNumberAttempts = 3
	maxOrderNotesLength    = 500
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates a uniqueness violation that retries could not resolve.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderClientNotFound indicates the referenced client does not exist.
	ErrOrderClientNotFound = errors.New("order: client not found")
	// ErrOrderAddressNotFound indicates a referenced shipping or billing address does not exist.
	ErrOrderAddressNotFound = errors.New("order: address not found")
	// ErrOrderProductNotFound indicates a line item references a missing product.
	ErrOrderProductNotFound = errors.New("order: product not found")
	// ErrOrderVariantNotFound indicates a line item references a missing variant under the strict policy.
	ErrOrderVariantNotFound = errors.New("order: variant not found")
	// ErrOrderUnavailable indicates the backing store could not be reached.
	ErrOrderUnavailable = errors.New("order: repository unavailable")
)

// VariantPolicy decides what happens when a line item names a variant that cannot be used.
type VariantPolicy string

const (
	// VariantPolicyLenient drops the variant reference and descriptor and keeps the line.
	VariantPolicyLenient VariantPolicy = "lenient"
	// VariantPolicyStrict rejects the order.
	VariantPolicyStrict VariantPolicy = "strict"
)

// ParseVariantPolicy maps configuration values onto a policy; unknown values are rejected.
func ParseVariantPolicy(raw string) (VariantPolicy, error) {
	switch VariantPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", VariantPolicyLenient:
		return VariantPolicyLenient, nil
	case VariantPolicyStrict:
		return VariantPolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown variant policy %q", raw)
	}
}

// VariantLookupOutcome tags how a line item's variant reference was resolved.
type VariantLookupOutcome int

const (
	// VariantNotRequested means the line item did not name a variant.
	VariantNotRequested VariantLookupOutcome = iota
	// VariantFound means the variant exists and belongs to the line's product.
	VariantFound
	// VariantMissingButOrderProceeds means the lenient policy dropped an unusable variant.
	VariantMissingButOrderProceeds
)

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusConfirmed, domain.OrderStatusCancelled, domain.OrderStatusRefunded},
	domain.OrderStatusConfirmed:  {domain.OrderStatusProcessing, domain.OrderStatusCancelled, domain.OrderStatusRefunded},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled, domain.OrderStatusRefunded},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered, domain.OrderStatusCancelled, domain.OrderStatusRefunded},
	domain.OrderStatusDelivered:  {domain.OrderStatusRefunded},
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	Products   repositories.ProductRepository
	Variants   repositories.VariantRepository
	Clients    repositories.ClientRepository
	Addresses  repositories.AddressRepository
	UnitOfWork repositories.UnitOfWork
	Currency   domain.Currency
	IDs        IdentifierGenerator
	Clock      func() time.Time
	Events     OrderEventPublisher
	Logger     func(ctx context.Context, event string, fields map[string]any)

	VariantPolicy      VariantPolicy
	EnforceTransitions bool
}

type orderService struct {
	orders     repositories.OrderRepository
	products   repositories.ProductRepository
	variants   repositories.VariantRepository
	clients    repositories.ClientRepository
	addresses  repositories.AddressRepository
	unitOfWork repositories.UnitOfWork
	currency   domain.Currency
	ids        IdentifierGenerator
	clock      func() time.Time
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)

	variantPolicy      VariantPolicy
	enforceTransitions bool
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Products == nil:
		return nil, errors.New("order service: product repository is required")
	case deps.Variants == nil:
		return nil, errors.New("order service: variant repository is required")
	case deps.Clients == nil:
		return nil, errors.New("order service: client repository is required")
	case deps.Addresses == nil:
		return nil, errors.New("order service: address repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	ids := deps.IDs
	if ids == nil {
		ids = NewIdentifierGenerator(clock, nil)
	}

	cur := deps.Currency
	if cur.Code == "" {
		cur = domain.MustCurrency(domain.DefaultCurrency)
	}

	policy := deps.VariantPolicy
	if policy == "" {
		policy = VariantPolicyLenient
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		products:   deps.Products,
		variants:   deps.Variants,
		clients:    deps.Clients,
		addresses:  deps.Addresses,
		unitOfWork: unit,
		currency:   cur,
		ids:        ids,
		clock: func() time.Time {
			return clock().UTC()
		},
		events:             deps.Events,
		logger:             logger,
		variantPolicy:      policy,
		enforceTransitions: deps.EnforceTransitions,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	v := newViolations(ErrOrderInvalidInput)
	v.check(cmd)
	unitPrices := make([]int64, len(cmd.Items))
	for i, item := range cmd.Items {
		unitPrices[i] = v.amount(s.currency, fmt.Sprintf("items[%d].unitPrice", i), item.UnitPrice, nonNegativeAmount)
	}
	adj := OrderAdjustments{
		Shipping: v.optionalAmount(s.currency, "shippingCost", cmd.ShippingCost, nonNegativeAmount),
		Tax:      v.optionalAmount(s.currency, "taxAmount", cmd.TaxAmount, nonNegativeAmount),
		Discount: v.optionalAmount(s.currency, "discountAmount", cmd.DiscountAmount, nonNegativeAmount),
	}
	if err := v.err(); err != nil {
		return Order{}, err
	}

	client, err := s.clients.FindByID(ctx, strings.TrimSpace(cmd.ClientID))
	if err != nil {
		return Order{}, s.mapReferenceError(err, ErrOrderClientNotFound, cmd.ClientID)
	}
	shipping, err := s.addresses.FindByID(ctx, strings.TrimSpace(cmd.ShippingAddressID))
	if err != nil {
		return Order{}, s.mapReferenceError(err, ErrOrderAddressNotFound, cmd.ShippingAddressID)
	}
	billing, err := s.addresses.FindByID(ctx, strings.TrimSpace(cmd.BillingAddressID))
	if err != nil {
		return Order{}, s.mapReferenceError(err, ErrOrderAddressNotFound, cmd.BillingAddressID)
	}

	now := s.clock()
	order := Order{
		ID:                s.ids.NewID(orderIDPrefix),
		ClientID:          client.ID,
		ShippingAddressID: shipping.ID,
		BillingAddressID:  billing.ID,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.PaymentStatusPending,
		PaymentMethod:     cmd.PaymentMethod,
		Currency:          s.currency.Code,
		Notes:             sanitizeNotes(cmd.Notes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	order.Items = make([]OrderItem, 0, len(cmd.Items))
	for i, input := range cmd.Items {
		item, err := s.composeItem(ctx, order.ID, i, input, unitPrices[i])
		if err != nil {
			return Order{}, err
		}
		order.Items = append(order.Items, item)
	}

	totals, err := ComputeOrderTotals(order.Items, adj)
	if err != nil {
		return Order{}, s.amountError(err)
	}
	order.Totals = totals

	if err := s.insertWithOrderNumber(ctx, &order); err != nil {
		return Order{}, err
	}

	order.Client = &client
	order.ShippingAddress = &shipping
	order.BillingAddress = &billing

	s.publishEvent(ctx, OrderEventCreated, order, now)
	s.logger(ctx, "order.created", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"items":       len(order.Items),
		"total":       s.currency.Format(order.Totals.Total),
	})
	return order, nil
}

// composeItem resolves one requested line against the live catalog and
// snapshots its display data.
func (s *orderService) composeItem(ctx context.Context, orderID string, index int, input OrderItemInput, unitPrice int64) (OrderItem, error) {
	productID := strings.TrimSpace(input.ProductID)
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return OrderItem{}, s.mapReferenceError(err, ErrOrderProductNotFound, fmt.Sprintf("items[%d] %s", index, productID))
	}

	total, err := LineTotal(unitPrice, input.Quantity)
	if err != nil {
		return OrderItem{}, s.amountError(err)
	}

	item := OrderItem{
		ID:          s.ids.NewID(orderItemIDPrefix),
		OrderID:     orderID,
		ProductID:   valuePtr(product.ID),
		Quantity:    input.Quantity,
		UnitPrice:   unitPrice,
		TotalPrice:  total,
		ProductName: product.Name,
		ProductSKU:  product.SKU,
		Product:     &ProductRef{ID: product.ID, Name: product.Name, Images: slices.Clone(product.Images)},
	}

	variant, outcome, err := s.lookupVariant(ctx, product, input.VariantID)
	if err != nil {
		if errors.Is(err, ErrOrderVariantNotFound) {
			return OrderItem{}, fmt.Errorf("%w (items[%d])", err, index)
		}
		return OrderItem{}, err
	}
	switch outcome {
	case VariantFound:
		item.VariantID = valuePtr(variant.ID)
		item.VariantInfo = &VariantInfo{Size: variant.Size, Color: variant.Color, ColorHex: variant.ColorHex}
		item.Variant = &VariantRef{ID: variant.ID, Size: variant.Size, Color: variant.Color}
	case VariantMissingButOrderProceeds:
		s.logger(ctx, "order.variant.missing", map[string]any{
			"productId": product.ID,
			"variantId": strings.TrimSpace(*input.VariantID),
			"item":      index,
		})
	}
	return item, nil
}

// lookupVariant applies the configured variant policy. Under the strict policy
// an unusable variant yields ErrOrderVariantNotFound.
func (s *orderService) lookupVariant(ctx context.Context, product Product, variantID *string) (ProductVariant, VariantLookupOutcome, error) {
	if variantID == nil || strings.TrimSpace(*variantID) == "" {
		return ProductVariant{}, VariantNotRequested, nil
	}
	id := strings.TrimSpace(*variantID)
	variant, err := s.variants.FindByID(ctx, id)
	switch {
	case err == nil && variant.ProductID == product.ID:
		return variant, VariantFound, nil
	case err == nil:
		if s.variantPolicy == VariantPolicyStrict {
			return ProductVariant{}, VariantNotRequested, fmt.Errorf("%w: %s belongs to another product", ErrOrderVariantNotFound, id)
		}
		return ProductVariant{}, VariantMissingButOrderProceeds, nil
	case isRepoNotFound(err):
		if s.variantPolicy == VariantPolicyStrict {
			return ProductVariant{}, VariantNotRequested, fmt.Errorf("%w: %s", ErrOrderVariantNotFound, id)
		}
		return ProductVariant{}, VariantMissingButOrderProceeds, nil
	default:
		return ProductVariant{}, VariantNotRequested, s.mapRepositoryError(err)
	}
}

// insertWithOrderNumber persists order and items in one transaction, drawing a
// fresh order number whenever the store reports an order number collision.
// A reference that vanished after lookup maps to its not-found error, except
// that the lenient policy drops vanished variants once and tries again.
func (s *orderService) insertWithOrderNumber(ctx context.Context, order *Order) error {
	var err error
	droppedVariants := false
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order.OrderNumber = s.ids.OrderNumber()
		err = s.runInTx(ctx, func(txCtx context.Context) error {
			return s.orders.Insert(txCtx, *order)
		})
		if err == nil {
			return nil
		}
		if !isRepoConflict(err) {
			return s.mapRepositoryError(err)
		}
		field := repositories.ConflictField(err)
		if field == "variant_id" && s.variantPolicy == VariantPolicyLenient && !droppedVariants {
			if dropErr := s.dropVanishedVariants(ctx, order); dropErr != nil {
				return dropErr
			}
			droppedVariants = true
			continue
		}
		if field != "order_number" {
			return s.insertConflictError(err, field)
		}
		s.logger(ctx, "order.number.conflict", map[string]any{
			"orderNumber": order.OrderNumber,
			"attempt":     attempt,
		})
	}
	return fmt.Errorf("%w: order number could not be allocated: %v", ErrOrderConflict, err)
}

// dropVanishedVariants clears the variant of every line whose variant no
// longer exists.
func (s *orderService) dropVanishedVariants(ctx context.Context, order *Order) error {
	for i := range order.Items {
		item := &order.Items[i]
		if item.VariantID == nil {
			continue
		}
		_, err := s.variants.FindByID(ctx, *item.VariantID)
		if err == nil {
			continue
		}
		if !isRepoNotFound(err) {
			return s.mapRepositoryError(err)
		}
		s.logger(ctx, "order.variant.missing", map[string]any{
			"productId": derefString(item.ProductID),
			"variantId": *item.VariantID,
			"item":      i,
		})
		item.VariantID = nil
		item.VariantInfo = nil
		item.Variant = nil
	}
	return nil
}

func (s *orderService) insertConflictError(err error, field string) error {
	switch field {
	case "product_id":
		return fmt.Errorf("%w: product removed while the order was placed: %v", ErrOrderProductNotFound, err)
	case "variant_id":
		return fmt.Errorf("%w: variant removed while the order was placed: %v", ErrOrderVariantNotFound, err)
	case "client_id":
		return fmt.Errorf("%w: client removed while the order was placed: %v", ErrOrderClientNotFound, err)
	case "shipping_address_id", "billing_address_id":
		return fmt.Errorf("%w: address removed while the order was placed: %v", ErrOrderAddressNotFound, err)
	}
	return s.mapRepositoryError(err)
}

func (s *orderService) Get(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if err := s.hydrate(ctx, &order, newOrderLookupCache()); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	v := newViolations(ErrOrderInvalidInput)
	for i, status := range filter.Status {
		if _, ok := knownOrderStatuses[status]; !ok {
			v.add(fmt.Sprintf("status[%d]", i), "oneof", fmt.Sprintf("unknown order status %q", status))
		}
	}
	for i, status := range filter.PaymentStatus {
		if _, ok := knownPaymentStatuses[status]; !ok {
			v.add(fmt.Sprintf("paymentStatus[%d]", i), "oneof", fmt.Sprintf("unknown payment status %q", status))
		}
	}
	if from, to := filter.DateRange.From, filter.DateRange.To; from != nil && to != nil && from.After(*to) {
		v.add("startDate", "range", "must not be after endDate")
	}
	if err := v.err(); err != nil {
		return domain.CursorPage[Order]{}, err
	}

	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		ClientID:      normalizeFilterPointer(filter.ClientID),
		Status:        filter.Status,
		PaymentStatus: filter.PaymentStatus,
		Search:        normalizeFilterPointer(filter.Search),
		DateRange:     filter.DateRange,
		Pagination: domain.Pagination{
			PageSize:  filter.Pagination.PageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	cache := newOrderLookupCache()
	for i := range page.Items {
		if err := s.hydrate(ctx, &page.Items[i], cache); err != nil {
			return domain.CursorPage[Order]{}, err
		}
	}
	return page, nil
}

func (s *orderService) Update(ctx context.Context, cmd UpdateOrderCommand) (Order, error) {
	v := newViolations(ErrOrderInvalidInput)
	v.check(cmd)
	adj := OrderAdjustments{
		Shipping: v.optionalAmount(s.currency, "shippingCost", cmd.ShippingCost, nonNegativeAmount),
		Tax:      v.optionalAmount(s.currency, "taxAmount", cmd.TaxAmount, nonNegativeAmount),
		Discount: v.optionalAmount(s.currency, "discountAmount", cmd.DiscountAmount, nonNegativeAmount),
	}
	if err := v.err(); err != nil {
		return Order{}, err
	}

	var updated Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, strings.TrimSpace(cmd.OrderID))
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if cmd.Status != nil {
			if err := s.applyStatus(&order, *cmd.Status); err != nil {
				return err
			}
		}
		if cmd.PaymentStatus != nil {
			order.PaymentStatus = *cmd.PaymentStatus
		}
		if cmd.PaymentMethod != nil {
			order.PaymentMethod = valuePtr(*cmd.PaymentMethod)
		}
		if cmd.Notes != nil {
			order.Notes = sanitizeNotes(cmd.Notes)
		}
		if adj.Shipping != nil || adj.Tax != nil || adj.Discount != nil {
			totals, err := RecomputeOrderTotals(order.Totals, adj)
			if err != nil {
				return s.amountError(err)
			}
			order.Totals = totals
		}
		order.UpdatedAt = s.clock()
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if err := s.hydrate(ctx, &updated, newOrderLookupCache()); err != nil {
		return Order{}, err
	}
	s.publishEvent(ctx, OrderEventUpdated, updated, updated.UpdatedAt)
	return updated, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	v := newViolations(ErrOrderInvalidInput)
	v.check(cmd)
	if err := v.err(); err != nil {
		return Order{}, err
	}
	status := cmd.Status
	return s.Update(ctx, UpdateOrderCommand{
		OrderID:       cmd.OrderID,
		Status:        &status,
		PaymentStatus: cmd.PaymentStatus,
	})
}

func (s *orderService) Delete(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	var deleted Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.orders.Delete(txCtx, orderID); err != nil {
			return s.mapRepositoryError(err)
		}
		deleted = order
		return nil
	})
	if err != nil {
		return err
	}
	s.publishEvent(ctx, OrderEventDeleted, deleted, s.clock())
	return nil
}

// applyStatus writes target onto order. Same-status writes are no-ops; with
// transitions enforced only edges of the lifecycle graph are accepted.
func (s *orderService) applyStatus(order *Order, target OrderStatus) error {
	if order.Status == target {
		return nil
	}
	if s.enforceTransitions && !canTransition(order.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, order.Status, target)
	}
	order.Status = target
	return nil
}

type orderLookupCache struct {
	clients   map[string]*Client
	addresses map[string]*Address
	products  map[string]*ProductRef
	variants  map[string]*VariantRef
}

func newOrderLookupCache() *orderLookupCache {
	return &orderLookupCache{
		clients:   map[string]*Client{},
		addresses: map[string]*Address{},
		products:  map[string]*ProductRef{},
		variants:  map[string]*VariantRef{},
	}
}

// hydrate attaches the live client, addresses and catalog summaries. Missing
// references leave the association nil; the item snapshot stays authoritative.
func (s *orderService) hydrate(ctx context.Context, order *Order, cache *orderLookupCache) error {
	var err error
	if order.Client, err = cachedLookup(ctx, cache.clients, order.ClientID, func(ctx context.Context, id string) (*Client, error) {
		client, err := s.clients.FindByID(ctx, id)
		return &client, err
	}); err != nil {
		return s.mapRepositoryError(err)
	}
	lookupAddress := func(ctx context.Context, id string) (*Address, error) {
		address, err := s.addresses.FindByID(ctx, id)
		return &address, err
	}
	if order.ShippingAddress, err = cachedLookup(ctx, cache.addresses, order.ShippingAddressID, lookupAddress); err != nil {
		return s.mapRepositoryError(err)
	}
	if order.BillingAddress, err = cachedLookup(ctx, cache.addresses, order.BillingAddressID, lookupAddress); err != nil {
		return s.mapRepositoryError(err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.ProductID != nil {
			if item.Product, err = cachedLookup(ctx, cache.products, *item.ProductID, func(ctx context.Context, id string) (*ProductRef, error) {
				product, err := s.products.FindByID(ctx, id)
				return &ProductRef{ID: product.ID, Name: product.Name, Images: product.Images}, err
			}); err != nil {
				return s.mapRepositoryError(err)
			}
		}
		if item.VariantID != nil {
			if item.Variant, err = cachedLookup(ctx, cache.variants, *item.VariantID, func(ctx context.Context, id string) (*VariantRef, error) {
				variant, err := s.variants.FindByID(ctx, id)
				return &VariantRef{ID: variant.ID, Size: variant.Size, Color: variant.Color}, err
			}); err != nil {
				return s.mapRepositoryError(err)
			}
		}
	}
	return nil
}

func cachedLookup[T any](ctx context.Context, cache map[string]*T, id string, load func(context.Context, string) (*T, error)) (*T, error) {
	if id == "" {
		return nil, nil
	}
	if value, ok := cache[id]; ok {
		return value, nil
	}
	value, err := load(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			cache[id] = nil
			return nil, nil
		}
		return nil, err
	}
	cache[id] = value
	return value, nil
}

func (s *orderService) mapReferenceError(err error, notFound error, ref string) error {
	if isRepoNotFound(err) {
		return fmt.Errorf("%w: %s", notFound, strings.TrimSpace(ref))
	}
	return s.mapRepositoryError(err)
}

func (s *orderService) amountError(err error) error {
	if errors.Is(err, domain.ErrAmountOverflow) {
		v := newViolations(ErrOrderInvalidInput)
		v.add("items", "range", "order amounts exceed the supported range")
		return v.err()
	}
	return err
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

// publishEvent runs after commit; failures are logged and never surface to the caller.
func (s *orderService) publishEvent(ctx context.Context, eventType string, order Order, at time.Time) {
	if s.events == nil {
		return
	}
	event := OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		ClientID:      order.ClientID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Total:         s.currency.Format(order.Totals.Total),
		Currency:      order.Currency,
		OccurredAt:    at,
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.Status,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

var knownOrderStatuses = map[OrderStatus]struct{}{
	domain.OrderStatusPending:    {},
	domain.OrderStatusConfirmed:  {},
	domain.OrderStatusProcessing: {},
	domain.OrderStatusShipped:    {},
	domain.OrderStatusDelivered:  {},
	domain.OrderStatusCancelled:  {},
	domain.OrderStatusRefunded:   {},
}

var knownPaymentStatuses = map[PaymentStatus]struct{}{
	domain.PaymentStatusPending:   {},
	domain.PaymentStatusCompleted: {},
	domain.PaymentStatusFailed:    {},
	domain.PaymentStatusRefunded:  {},
}

func sanitizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	cleaned := textutil.TruncateRunes(textutil.SanitizePlainText(*notes), maxOrderNotesLength)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func normalizeFilterPointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func valuePtr[T any](v T) *T {
	return &v
}

func canTransition(current, target OrderStatus) bool {
	if current == target {
		return true
	}
	next, ok := orderStatusTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}
