// Package model defines domain entities exchanged with the marketplace API and held in local state.
package model

import "time"

// Credentials are the username/password pair sent to the token endpoint.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair collects issued access/refresh tokens.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RegisterPayload is the sign-up form.
type RegisterPayload struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// UserUpdate carries the editable parts of the current user.
type UserUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// User is the authenticated account as reported by /accounts/me/.
// It is replaced wholesale on each fetch.
type User struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	IsProducer bool   `json:"is_producer"`
}

// ProductStatus is the publication state of a product.
type ProductStatus string

const (
	ProductDraft    ProductStatus = "draft"
	ProductPending  ProductStatus = "pending"
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

// Product is a point-in-time copy of a catalog entry. Price and Quantity are decimal strings.
type Product struct {
	ID                int64         `json:"id"`
	ProducerUsername  string        `json:"producer_username"`
	Name              string        `json:"name"`
	Description       string        `json:"description,omitempty"`
	Category          string        `json:"category,omitempty"`
	Price             string        `json:"price"`
	Quantity          string        `json:"quantity,omitempty"`
	Unit              string        `json:"unit,omitempty"`
	UnitDisplay       string        `json:"unit_display,omitempty"`
	Image             string        `json:"image,omitempty"`
	CultivationMethod string        `json:"cultivation_method,omitempty"`
	Status            ProductStatus `json:"status,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// ProductInput is the producer-side create/update form. Image is a local file path.
type ProductInput struct {
	Name              string
	Description       string
	Category          string
	Price             string
	Quantity          string
	Unit              string
	CultivationMethod string
	Status            ProductStatus
	Image             string
}

// ProductFilters narrows a catalog listing. Zero values are not sent.
type ProductFilters struct {
	Search            string
	Category          string
	MinPrice          string
	MaxPrice          string
	CultivationMethod []string
	Ordering          string
	ProducerUsername  string
	Status            ProductStatus
	Owner             string
	Limit             int
}

// CartLine is one product/quantity pairing; Quantity is always >= 1.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Favorite is a favorite-marking relation. ID identifies the relation, not the product.
type Favorite struct {
	ID        int64     `json:"id"`
	Product   Product   `json:"product"`
	CreatedAt time.Time `json:"created_at"`
}

// Shipping is the delivery address captured at checkout.
type Shipping struct {
	FullName    string `json:"shipping_full_name"`
	PostalCode  string `json:"shipping_postal_code"`
	Prefecture  string `json:"shipping_prefecture"`
	City        string `json:"shipping_city"`
	Address1    string `json:"shipping_address1"`
	Address2    string `json:"shipping_address2,omitempty"`
	PhoneNumber string `json:"shipping_phone_number"`
}

// OrderPayloadItem is one requested line of a new order.
type OrderPayloadItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderPayload is the body of POST /orders/.
type OrderPayload struct {
	Shipping
	PaymentMethod string             `json:"payment_method"`
	Notes         string             `json:"notes,omitempty"`
	Items         []OrderPayloadItem `json:"items"`
}

// OrderItem is a line of a placed order with the price fixed at purchase time.
type OrderItem struct {
	ID              int64  `json:"id"`
	ProductID       int64  `json:"product_id"`
	ProductName     string `json:"product_name"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase string `json:"price_at_purchase"`
}

// Order is a placed order as reported by the API.
type Order struct {
	ID           int64  `json:"id"`
	OrderID      string `json:"order_id"`
	UserUsername string `json:"user_username,omitempty"`
	Shipping
	TotalAmount   string      `json:"total_amount"`
	PaymentMethod string      `json:"payment_method,omitempty"`
	PaymentStatus string      `json:"payment_status"`
	OrderStatus   string      `json:"order_status"`
	Notes         string      `json:"notes,omitempty"`
	Items         []OrderItem `json:"items"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Order lifecycle values used by the producer endpoints.
const (
	OrderPending    = "pending_order"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderCompleted  = "completed"
	OrderCancelled  = "cancelled"
)

// OrderFilters narrows the producer-side order listing.
type OrderFilters struct {
	OrderStatus string
	Search      string
	Ordering    string
}

// Profile is a user's (usually producer's) public profile.
type Profile struct {
	ID                 int64     `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email,omitempty"`
	FarmName           string    `json:"farm_name,omitempty"`
	LocationPrefecture string    `json:"location_prefecture,omitempty"`
	LocationCity       string    `json:"location_city,omitempty"`
	Bio                string    `json:"bio,omitempty"`
	Image              string    `json:"image,omitempty"`
	WebsiteURL         string    `json:"website_url,omitempty"`
	CertificationInfo  string    `json:"certification_info,omitempty"`
	IsProducer         bool      `json:"is_producer"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ProfileUpdate is the farm-settings form. Empty strings are not sent; Image is a local file path.
type ProfileUpdate struct {
	FarmName           string
	LocationPrefecture string
	LocationCity       string
	Bio                string
	WebsiteURL         string
	CertificationInfo  string
	Image              string
}

// ProfileFilters narrows the producer directory.
type ProfileFilters struct {
	Search             string
	LocationPrefecture string
	LocationCity       string
	Ordering           string
	Page               int
}

// Page is a paginated listing.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
