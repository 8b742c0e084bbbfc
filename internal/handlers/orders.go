package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/platform/httpx"
	"github.com/boutique-admin/api/internal/services"
)

// OrderHandlers exposes order composition and maintenance endpoints.
type OrderHandlers struct {
	orders     services.OrderService
	currency   domain.Currency
	pageSize   int
	createGate func(http.Handler) http.Handler
}

// OrderHandlersOption customises OrderHandlers.
type OrderHandlersOption func(*OrderHandlers)

// WithOrderCurrency sets the fallback currency used to render order amounts.
func WithOrderCurrency(currency domain.Currency) OrderHandlersOption {
	return func(h *OrderHandlers) {
		if currency.Code != "" {
			h.currency = currency
		}
	}
}

// WithOrderPageSize sets the default list page size.
func WithOrderPageSize(size int) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.pageSize = size
	}
}

// WithCreateMiddleware wraps POST /orders, typically with the idempotency guard.
func WithCreateMiddleware(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.createGate = mw
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		orders:   orders,
		currency: domain.MustCurrency(domain.DefaultCurrency),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	if h.createGate != nil {
		r.With(h.createGate).Post("/", h.createOrder)
	} else {
		r.Post("/", h.createOrder)
	}
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}", h.updateOrder)
	r.Delete("/{orderID}", h.deleteOrder)
	r.Patch("/{orderID}/status", h.updateOrderStatus)
}

type orderItemRequest struct {
	ProductID string          `json:"productId"`
	VariantID *string         `json:"variantId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type createOrderRequest struct {
	ClientID          string             `json:"clientId"`
	Items             []orderItemRequest `json:"items"`
	ShippingAddressID string             `json:"shippingAddressId"`
	BillingAddressID  string             `json:"billingAddressId"`
	ShippingCost      *decimal.Decimal   `json:"shippingCost"`
	TaxAmount         *decimal.Decimal   `json:"taxAmount"`
	DiscountAmount    *decimal.Decimal   `json:"discountAmount"`
	PaymentMethod     *string            `json:"paymentMethod"`
	Notes             *string            `json:"notes"`
}

func (req createOrderRequest) toCommand() services.CreateOrderCommand {
	items := make([]services.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderItemInput{
			ProductID: strings.TrimSpace(item.ProductID),
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return services.CreateOrderCommand{
		ClientID:          strings.TrimSpace(req.ClientID),
		Items:             items,
		ShippingAddressID: strings.TrimSpace(req.ShippingAddressID),
		BillingAddressID:  strings.TrimSpace(req.BillingAddressID),
		ShippingCost:      req.ShippingCost,
		TaxAmount:         req.TaxAmount,
		DiscountAmount:    req.DiscountAmount,
		PaymentMethod:     paymentMethodPointer(req.PaymentMethod),
		Notes:             req.Notes,
	}
}

// updateOrderRequest is partial; id may be echoed back but the URL is authoritative.
type updateOrderRequest struct {
	ID             string           `json:"id"`
	Status         *string          `json:"status"`
	PaymentStatus  *string          `json:"paymentStatus"`
	PaymentMethod  *string          `json:"paymentMethod"`
	ShippingCost   *decimal.Decimal `json:"shippingCost"`
	TaxAmount      *decimal.Decimal `json:"taxAmount"`
	DiscountAmount *decimal.Decimal `json:"discountAmount"`
	Notes          *string          `json:"notes"`
}

type updateOrderStatusRequest struct {
	Status        string  `json:"status"`
	PaymentStatus *string `json:"paymentStatus"`
}

type orderClientPayload struct {
	ID        string  `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone,omitempty"`
}

type orderAddressPayload struct {
	ID         string  `json:"id"`
	Recipient  string  `json:"recipient"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

type orderItemProductPayload struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Images []string `json:"images"`
}

type orderItemVariantPayload struct {
	ID    string `json:"id"`
	Size  string `json:"size"`
	Color string `json:"color"`
}

type orderItemPayload struct {
	ID          string                   `json:"id"`
	ProductID   *string                  `json:"productId"`
	VariantID   *string                  `json:"variantId"`
	Quantity    int                      `json:"quantity"`
	UnitPrice   json.Number              `json:"unitPrice"`
	TotalPrice  json.Number              `json:"totalPrice"`
	ProductName string                   `json:"productName"`
	ProductSKU  string                   `json:"productSku"`
	VariantInfo *services.VariantInfo    `json:"variantInfo,omitempty"`
	Product     *orderItemProductPayload `json:"product"`
	Variant     *orderItemVariantPayload `json:"variant"`
}

type orderPayload struct {
	ID                string               `json:"id"`
	OrderNumber       string               `json:"orderNumber"`
	ClientID          string               `json:"clientId"`
	Client            *orderClientPayload  `json:"client,omitempty"`
	ShippingAddressID string               `json:"shippingAddressId"`
	BillingAddressID  string               `json:"billingAddressId"`
	ShippingAddress   *orderAddressPayload `json:"shippingAddress,omitempty"`
	BillingAddress    *orderAddressPayload `json:"billingAddress,omitempty"`
	Status            string               `json:"status"`
	PaymentStatus     string               `json:"paymentStatus"`
	PaymentMethod     *string              `json:"paymentMethod"`
	Subtotal          json.Number          `json:"subtotal"`
	ShippingCost      json.Number          `json:"shippingCost"`
	TaxAmount         json.Number          `json:"taxAmount"`
	DiscountAmount    json.Number          `json:"discountAmount"`
	TotalAmount       json.Number          `json:"totalAmount"`
	Currency          string               `json:"currency"`
	Notes             *string              `json:"notes,omitempty"`
	Items             []orderItemPayload   `json:"items"`
	CreatedAt         string               `json:"createdAt"`
	UpdatedAt         string               `json:"updatedAt"`
}

func (h *OrderHandlers) orderCurrency(order services.Order) domain.Currency {
	if order.Currency == "" || strings.EqualFold(order.Currency, h.currency.Code) {
		return h.currency
	}
	if cur, err := domain.LookupCurrency(order.Currency); err == nil {
		return cur
	}
	return h.currency
}

func (h *OrderHandlers) buildOrderPayload(order services.Order) orderPayload {
	cur := h.orderCurrency(order)
	payload := orderPayload{
		ID:                order.ID,
		OrderNumber:       order.OrderNumber,
		ClientID:          order.ClientID,
		ShippingAddressID: order.ShippingAddressID,
		BillingAddressID:  order.BillingAddressID,
		Status:            string(order.Status),
		PaymentStatus:     string(order.PaymentStatus),
		Subtotal:          money(cur, order.Totals.Subtotal),
		ShippingCost:      money(cur, order.Totals.Shipping),
		TaxAmount:         money(cur, order.Totals.Tax),
		DiscountAmount:    money(cur, order.Totals.Discount),
		TotalAmount:       money(cur, order.Totals.Total),
		Currency:          cur.Code,
		Notes:             order.Notes,
		Items:             make([]orderItemPayload, 0, len(order.Items)),
		CreatedAt:         formatTime(order.CreatedAt),
		UpdatedAt:         formatTime(order.UpdatedAt),
	}
	if order.PaymentMethod != nil {
		method := string(*order.PaymentMethod)
		payload.PaymentMethod = &method
	}
	if c := order.Client; c != nil {
		payload.Client = &orderClientPayload{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName, Email: c.Email, Phone: c.Phone}
	}
	payload.ShippingAddress = buildAddressPayload(order.ShippingAddress)
	payload.BillingAddress = buildAddressPayload(order.BillingAddress)

	for _, item := range order.Items {
		line := orderItemPayload{
			ID:          item.ID,
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			Quantity:    item.Quantity,
			UnitPrice:   money(cur, item.UnitPrice),
			TotalPrice:  money(cur, item.TotalPrice),
			ProductName: item.ProductName,
			ProductSKU:  item.ProductSKU,
			VariantInfo: item.VariantInfo,
		}
		if p := item.Product; p != nil {
			line.Product = &orderItemProductPayload{ID: p.ID, Name: p.Name, Images: nonNilStrings(p.Images)}
		}
		if v := item.Variant; v != nil {
			line.Variant = &orderItemVariantPayload{ID: v.ID, Size: v.Size, Color: v.Color}
		}
		payload.Items = append(payload.Items, line)
	}
	return payload
}

func buildAddressPayload(addr *services.Address) *orderAddressPayload {
	if addr == nil {
		return nil
	}
	return &orderAddressPayload{
		ID:         addr.ID,
		Recipient:  addr.Recipient,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}

	page, err := pageParams(r, h.pageSize)
	if err != nil {
		writePaginationError(ctx, w, err)
		return
	}

	query := r.URL.Query()
	var dateRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("startDate")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			writeQueryError(ctx, w, "startDate", err)
			return
		}
		dateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("endDate")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			writeQueryError(ctx, w, "endDate", err)
			return
		}
		// A bare date covers the whole day.
		if len(raw) == len(time.DateOnly) {
			ts = ts.Add(24*time.Hour - time.Nanosecond)
		}
		dateRange.To = &ts
	}

	filter := services.OrderListFilter{
		ClientID:   optionalQuery(query.Get("clientId")),
		Search:     optionalQuery(query.Get("search")),
		DateRange:  dateRange,
		Pagination: page,
	}
	for _, status := range parseFilterValues(query["status"]) {
		filter.Status = append(filter.Status, services.OrderStatus(status))
	}
	for _, status := range parseFilterValues(query["paymentStatus"]) {
		filter.PaymentStatus = append(filter.PaymentStatus, services.PaymentStatus(status))
	}

	result, err := h.orders.List(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(result.Items))
	for _, order := range result.Items {
		items = append(items, h.buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, listResponse[orderPayload]{Items: items, NextPageToken: result.NextPageToken})
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}

	var req createOrderRequest
	if err := decodeBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.Create(ctx, req.toCommand())
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+order.ID)
	writeJSONResponse(w, http.StatusCreated, h.buildOrderPayload(order))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	order, err := h.orders.Get(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.buildOrderPayload(order))
}

func (h *OrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}

	var req updateOrderRequest
	if err := decodeBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if echoed := strings.TrimSpace(req.ID); echoed != "" && echoed != orderID {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "body id does not match the order in the path", http.StatusBadRequest))
		return
	}

	cmd := services.UpdateOrderCommand{
		OrderID:        orderID,
		PaymentMethod:  paymentMethodPointer(req.PaymentMethod),
		ShippingCost:   req.ShippingCost,
		TaxAmount:      req.TaxAmount,
		DiscountAmount: req.DiscountAmount,
		Notes:          req.Notes,
	}
	if req.Status != nil {
		status := services.OrderStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		cmd.Status = &status
	}
	if req.PaymentStatus != nil {
		status := services.PaymentStatus(strings.ToUpper(strings.TrimSpace(*req.PaymentStatus)))
		cmd.PaymentStatus = &status
	}

	order, err := h.orders.Update(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.buildOrderPayload(order))
}

func (h *OrderHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}

	var req updateOrderStatusRequest
	if err := decodeBody(r, maxOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	cmd := services.UpdateOrderStatusCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Status:  services.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
	}
	if req.PaymentStatus != nil {
		status := services.PaymentStatus(strings.ToUpper(strings.TrimSpace(*req.PaymentStatus)))
		cmd.PaymentStatus = &status
	}

	order, err := h.orders.UpdateStatus(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.buildOrderPayload(order))
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if err := h.orders.Delete(ctx, orderID); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, deleteResponse{ID: orderID, Deleted: true})
}

func paymentMethodPointer(raw *string) *services.PaymentMethod {
	if raw == nil {
		return nil
	}
	method := services.PaymentMethod(strings.ToUpper(strings.TrimSpace(*raw)))
	return &method
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		writeValidationError(ctx, w, err)
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderClientNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("client_not_found", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderAddressNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("address_not_found", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderVariantNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("variant_not_found", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order could not be saved, retry the request", http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "order store unavailable", http.StatusServiceUnavailable))
	default:
		writeInternalError(ctx, w, "order_error", "failed to process order request", err)
	}
}
