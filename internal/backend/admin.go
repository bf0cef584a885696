package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Customer is a shopper account as listed in the back-office
type Customer struct {
	ID        string    `json:"_id"`
	UserName  string    `json:"userName"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	IsBlocked bool      `json:"isBlocked"`
	CreatedAt time.Time `json:"createdAt"`
}

// Product is a catalog entry
type Product struct {
	ID          string   `json:"_id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Category    string   `json:"category"`
	Images      []string `json:"images,omitempty"`
	IsListed    bool     `json:"isListed"`
}

// Category groups products
type Category struct {
	ID          string `json:"_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsListed    bool   `json:"isListed"`
}

// Order is a placed order
type Order struct {
	ID            string    `json:"_id"`
	UserName      string    `json:"userName"`
	Total         float64   `json:"total"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"paymentMethod"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ListCustomers returns every customer profile
func (c *Client) ListCustomers(ctx context.Context, credential string) ([]Customer, error) {
	var customers []Customer
	if _, err := c.call(ctx, http.MethodGet, "/admin/data", credential, nil, &customers); err != nil {
		return nil, err
	}
	for _, cu := range customers {
		if cu.ID == "" {
			return nil, malformed("customer without _id")
		}
	}
	return customers, nil
}

type blockRequest struct {
	IsBlocked bool `json:"isBlocked"`
}

// SetBlocked blocks or unblocks a customer
func (c *Client) SetBlocked(ctx context.Context, credential, userID string, blocked bool) error {
	_, err := c.call(ctx, http.MethodPut, "/admin/block/"+url.PathEscape(userID), credential, blockRequest{IsBlocked: blocked}, nil)
	return err
}

// ListProducts returns the catalog
func (c *Client) ListProducts(ctx context.Context, credential string) ([]Product, error) {
	var products []Product
	if _, err := c.call(ctx, http.MethodGet, "/admin/products", credential, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct returns one product
func (c *Client) GetProduct(ctx context.Context, credential, id string) (*Product, error) {
	var p Product
	if _, err := c.call(ctx, http.MethodGet, "/admin/products/"+url.PathEscape(id), credential, nil, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, malformed("product without _id")
	}
	return &p, nil
}

// CreateProduct adds a product
func (c *Client) CreateProduct(ctx context.Context, credential string, p Product) error {
	_, err := c.call(ctx, http.MethodPost, "/admin/products", credential, p, nil)
	return err
}

// UpdateProduct replaces a product
func (c *Client) UpdateProduct(ctx context.Context, credential, id string, p Product) error {
	_, err := c.call(ctx, http.MethodPut, "/admin/products/"+url.PathEscape(id), credential, p, nil)
	return err
}

// ListCategories returns every category
func (c *Client) ListCategories(ctx context.Context, credential string) ([]Category, error) {
	var categories []Category
	if _, err := c.call(ctx, http.MethodGet, "/admin/category", credential, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetCategory returns one category
func (c *Client) GetCategory(ctx context.Context, credential, id string) (*Category, error) {
	var cat Category
	if _, err := c.call(ctx, http.MethodGet, "/admin/category/"+url.PathEscape(id), credential, nil, &cat); err != nil {
		return nil, err
	}
	if cat.ID == "" {
		return nil, malformed("category without _id")
	}
	return &cat, nil
}

// CreateCategory adds a category
func (c *Client) CreateCategory(ctx context.Context, credential string, cat Category) error {
	_, err := c.call(ctx, http.MethodPost, "/admin/category", credential, cat, nil)
	return err
}

// UpdateCategory replaces a category
func (c *Client) UpdateCategory(ctx context.Context, credential, id string, cat Category) error {
	_, err := c.call(ctx, http.MethodPut, "/admin/category/"+url.PathEscape(id), credential, cat, nil)
	return err
}

// ListOrders returns every order
func (c *Client) ListOrders(ctx context.Context, credential string) ([]Order, error) {
	var orders []Order
	if _, err := c.call(ctx, http.MethodGet, "/admin/orders", credential, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
