package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// ProductSort indicates the field used to order product searches.
type ProductSort string

const (
	// ProductSortCreatedAt sorts products by creation time.
	ProductSortCreatedAt ProductSort = "createdAt"
	// ProductSortName sorts products alphabetically.
	ProductSortName ProductSort = "name"
	// ProductSortPrice sorts products by list price.
	ProductSortPrice ProductSort = "price"
)

// Category files products into a two level tree (root and sub).
type Category struct {
	ID          string
	Name        string
	Slug        string
	Description *string
	ParentID    *string
	Image       *string
	IsActive    bool
	SortOrder   int
	Children    []Category
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsRoot reports whether the category sits at the top of the tree.
func (c Category) IsRoot() bool {
	return c.ParentID == nil || *c.ParentID == ""
}

// Brand is referenced by products; names are unique.
type Brand struct {
	ID          string
	Name        string
	Slug        string
	Description *string
	Logo        *string
	Website     *string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Dimensions carries the package dimensions of a product.
type Dimensions struct {
	Length float64
	Width  float64
	Height float64
}

// Product is the catalog entry owning a variant matrix. Prices are in minor units.
type Product struct {
	ID               string
	Name             string
	Slug             string
	SKU              string
	Description      string
	ShortDescription *string
	Price            int64
	ComparePrice     *int64
	Stock            int
	Images           []string
	CategoryID       string
	BrandID          *string
	Available        bool
	Featured         bool
	IsNewIn          bool
	Tags             []string
	MetaTitle        *string
	MetaDescription  *string
	Weight           *float64
	Dimensions       *Dimensions
	Variants         []ProductVariant
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProductVariant is one purchasable size/color combination of a product.
type ProductVariant struct {
	ID        string
	ProductID string
	Size      string
	Color     string
	ColorHex  string
	SKU       string
	Stock     int
	Price     *int64
	Images    []string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VariantKey identifies a variant within its product's matrix.
type VariantKey struct {
	Size  string
	Color string
}

// Key returns the (size, color) matrix key of the variant.
func (v ProductVariant) Key() VariantKey {
	return VariantKey{Size: v.Size, Color: v.Color}
}

// VariantStats aggregates the active variants of a product for read views.
type VariantStats struct {
	TotalStock      int
	AvailableSizes  []string
	AvailableColors []string
}

// Client is a read-only reference owned by the customer directory.
type Client struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     *string
}

// Address is a read-only postal address owned by the customer directory.
type Address struct {
	ID         string
	ClientID   string
	Recipient  string
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
	Phone      *string
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending is the initial state of every new order.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed indicates the order was accepted by the back office.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusShipped indicates the order left the warehouse.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered indicates the carrier confirmed delivery.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled is a terminal side branch.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusRefunded is a terminal side branch.
	OrderStatusRefunded OrderStatus = "REFUNDED"
)

// PaymentStatus is settable independently from OrderStatus.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// PaymentMethod records how the client intends to pay.
type PaymentMethod string

const (
	PaymentMethodCard      PaymentMethod = "CARD"
	PaymentMethodPayPal    PaymentMethod = "PAYPAL"
	PaymentMethodApplePay  PaymentMethod = "APPLE_PAY"
	PaymentMethodGooglePay PaymentMethod = "GOOGLE_PAY"
)

// OrderTotals stores the monetary fields of an order in minor units.
type OrderTotals struct {
	Subtotal int64
	Shipping int64
	Tax      int64
	Discount int64
	Total    int64
}

// Order is composed once from a line item list; only status, payment and
// adjustment fields change afterwards.
type Order struct {
	ID                string
	OrderNumber       string
	ClientID          string
	ShippingAddressID string
	BillingAddressID  string
	Status            OrderStatus
	PaymentStatus     PaymentStatus
	PaymentMethod     *PaymentMethod
	Currency          string
	Totals            OrderTotals
	Notes             *string
	Items             []OrderItem
	Client            *Client
	ShippingAddress   *Address
	BillingAddress    *Address
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderItem is an immutable line of an order. ProductName, ProductSKU and
// VariantInfo are captured at order time and never recomputed.
type OrderItem struct {
	ID          string
	OrderID     string
	ProductID   *string
	VariantID   *string
	Quantity    int
	UnitPrice   int64
	TotalPrice  int64
	ProductName string
	ProductSKU  string
	VariantInfo *VariantInfo
	Product     *ProductRef
	Variant     *VariantRef
}

// ProductRef is the live product summary attached to an order item for display.
// It is resolved on read and is nil once the product has been deleted.
type ProductRef struct {
	ID     string
	Name   string
	Images []string
}

// VariantRef is the live variant summary attached to an order item for display.
type VariantRef struct {
	ID    string
	Size  string
	Color string
}

// VariantInfo is the variant descriptor snapshotted into an order item.
type VariantInfo struct {
	Size     string `json:"size,omitempty"`
	Color    string `json:"color,omitempty"`
	ColorHex string `json:"colorHex,omitempty"`
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// CursorPage wraps a page of results with the token of the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
