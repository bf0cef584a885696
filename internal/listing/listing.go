// Package listing implements the local search and filters of the back-office
// tables. The backend returns whole collections; narrowing happens here.
package listing

import (
	"slices"
	"strings"

	"github.com/storefront-dev/storefront/internal/backend"
)

// CustomerStatus filters customers by their blocked flag
type CustomerStatus string

const (
	CustomersAll     CustomerStatus = "all"
	CustomersActive  CustomerStatus = "active"
	CustomersBlocked CustomerStatus = "blocked"
)

// ParseCustomerStatus falls back to all for unknown values
func ParseCustomerStatus(value string) CustomerStatus {
	switch CustomerStatus(strings.ToLower(value)) {
	case CustomersActive:
		return CustomersActive
	case CustomersBlocked:
		return CustomersBlocked
	default:
		return CustomersAll
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

func normalize(search string) string {
	return strings.ToLower(strings.TrimSpace(search))
}

// Customers matches the search against name, email and phone, applies the
// status filter and orders newest first
func Customers(list []backend.Customer, search string, status CustomerStatus) []backend.Customer {
	q := normalize(search)
	out := make([]backend.Customer, 0, len(list))
	for _, c := range list {
		switch status {
		case CustomersActive:
			if c.IsBlocked {
				continue
			}
		case CustomersBlocked:
			if !c.IsBlocked {
				continue
			}
		}
		if q != "" && !contains(c.UserName, q) && !contains(c.Email, q) && !contains(c.Phone, q) {
			continue
		}
		out = append(out, c)
	}

	slices.SortStableFunc(out, func(a, b backend.Customer) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// Products matches the search against name and description; category narrows
// to one category when set
func Products(list []backend.Product, search, category string) []backend.Product {
	q := normalize(search)
	out := make([]backend.Product, 0, len(list))
	for _, p := range list {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if q != "" && !contains(p.Name, q) && !contains(p.Description, q) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Categories matches the search against the category name
func Categories(list []backend.Category, search string) []backend.Category {
	q := normalize(search)
	out := make([]backend.Category, 0, len(list))
	for _, c := range list {
		if q != "" && !contains(c.Name, q) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Orders narrows to one status when set and orders newest first
func Orders(list []backend.Order, status string) []backend.Order {
	out := make([]backend.Order, 0, len(list))
	for _, o := range list {
		if status != "" && !strings.EqualFold(o.Status, status) {
			continue
		}
		out = append(out, o)
	}

	slices.SortStableFunc(out, func(a, b backend.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}
