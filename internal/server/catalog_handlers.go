package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storefront-dev/storefront/internal/backend"
	"github.com/storefront-dev/storefront/internal/listing"
)

// ProductForm represents the add/edit product form. Images are URLs of files
// already uploaded to the backend.
type ProductForm struct {
	Name        string   `json:"name" form:"name" validate:"required,min=2"`
	Description string   `json:"description" form:"description"`
	Price       float64  `json:"price" form:"price" validate:"gt=0"`
	Stock       int      `json:"stock" form:"stock" validate:"gte=0"`
	Category    string   `json:"category" form:"category" validate:"required"`
	Images      []string `json:"images" form:"images"`
	IsListed    bool     `json:"isListed" form:"isListed"`
}

func (f ProductForm) product() backend.Product {
	return backend.Product{
		Name:        f.Name,
		Description: f.Description,
		Price:       f.Price,
		Stock:       f.Stock,
		Category:    f.Category,
		Images:      f.Images,
		IsListed:    f.IsListed,
	}
}

// CategoryForm represents the add/edit category form
type CategoryForm struct {
	Name        string `json:"name" form:"name" validate:"required,min=2"`
	Description string `json:"description" form:"description"`
	IsListed    bool   `json:"isListed" form:"isListed"`
}

func (f CategoryForm) category() backend.Category {
	return backend.Category{Name: f.Name, Description: f.Description, IsListed: f.IsListed}
}

func (s *Server) products(c *gin.Context) {
	search := c.Query("search")
	category := c.Query("category")
	data := gin.H{"search": search, "category": category}

	all, err := s.backend.ListProducts(c.Request.Context(), adminCredential(c))
	if err != nil {
		s.backendFailure(c, ScreenProducts, data, err)
		return
	}

	data["products"] = listing.Products(all, search, category)
	data["total"] = len(all)
	render(c, http.StatusOK, ScreenProducts, data)
}

func (s *Server) showAddProduct(c *gin.Context) {
	categories, err := s.backend.ListCategories(c.Request.Context(), adminCredential(c))
	if err != nil {
		s.backendFailure(c, ScreenAddProduct, nil, err)
		return
	}
	render(c, http.StatusOK, ScreenAddProduct, gin.H{"categories": categories})
}

func (s *Server) addProduct(c *gin.Context) {
	var req ProductForm
	if !s.bindForm(c, ScreenAddProduct, nil, &req) {
		return
	}

	if err := s.backend.CreateProduct(c.Request.Context(), adminCredential(c), req.product()); err != nil {
		s.backendFailure(c, ScreenAddProduct, gin.H{"product": req}, err)
		return
	}

	s.logger.Info().Str("name", req.Name).Msg("Product added")
	navigate(c, "/admin/productdata")
}

func (s *Server) showEditProduct(c *gin.Context) {
	ctx := c.Request.Context()
	credential := adminCredential(c)

	product, err := s.backend.GetProduct(ctx, credential, c.Param("id"))
	if err != nil {
		s.backendFailure(c, ScreenEditProduct, nil, err)
		return
	}
	categories, err := s.backend.ListCategories(ctx, credential)
	if err != nil {
		s.backendFailure(c, ScreenEditProduct, gin.H{"product": product}, err)
		return
	}
	render(c, http.StatusOK, ScreenEditProduct, gin.H{"product": product, "categories": categories})
}

func (s *Server) editProduct(c *gin.Context) {
	id := c.Param("id")
	data := gin.H{"id": id}

	var req ProductForm
	if !s.bindForm(c, ScreenEditProduct, data, &req) {
		return
	}

	if err := s.backend.UpdateProduct(c.Request.Context(), adminCredential(c), id, req.product()); err != nil {
		data["product"] = req
		s.backendFailure(c, ScreenEditProduct, data, err)
		return
	}

	s.logger.Info().Str("product_id", id).Msg("Product updated")
	navigate(c, "/admin/productdata")
}

func (s *Server) categories(c *gin.Context) {
	search := c.Query("search")
	data := gin.H{"search": search}

	all, err := s.backend.ListCategories(c.Request.Context(), adminCredential(c))
	if err != nil {
		s.backendFailure(c, ScreenCategories, data, err)
		return
	}

	data["categories"] = listing.Categories(all, search)
	data["total"] = len(all)
	render(c, http.StatusOK, ScreenCategories, data)
}

func (s *Server) showAddCategory(c *gin.Context) {
	render(c, http.StatusOK, ScreenAddCategory, nil)
}

func (s *Server) addCategory(c *gin.Context) {
	var req CategoryForm
	if !s.bindForm(c, ScreenAddCategory, nil, &req) {
		return
	}

	if err := s.backend.CreateCategory(c.Request.Context(), adminCredential(c), req.category()); err != nil {
		s.backendFailure(c, ScreenAddCategory, gin.H{"category": req}, err)
		return
	}

	s.logger.Info().Str("name", req.Name).Msg("Category added")
	navigate(c, "/admin/categorydata")
}

func (s *Server) showEditCategory(c *gin.Context) {
	category, err := s.backend.GetCategory(c.Request.Context(), adminCredential(c), c.Param("id"))
	if err != nil {
		s.backendFailure(c, ScreenEditCategory, nil, err)
		return
	}
	render(c, http.StatusOK, ScreenEditCategory, gin.H{"category": category})
}

func (s *Server) editCategory(c *gin.Context) {
	id := c.Param("id")
	data := gin.H{"id": id}

	var req CategoryForm
	if !s.bindForm(c, ScreenEditCategory, data, &req) {
		return
	}

	if err := s.backend.UpdateCategory(c.Request.Context(), adminCredential(c), id, req.category()); err != nil {
		data["category"] = req
		s.backendFailure(c, ScreenEditCategory, data, err)
		return
	}

	s.logger.Info().Str("category_id", id).Msg("Category updated")
	navigate(c, "/admin/categorydata")
}

func (s *Server) orders(c *gin.Context) {
	status := c.Query("status")
	data := gin.H{"status": status}

	all, err := s.backend.ListOrders(c.Request.Context(), adminCredential(c))
	if err != nil {
		s.backendFailure(c, ScreenOrders, data, err)
		return
	}

	data["orders"] = listing.Orders(all, status)
	data["total"] = len(all)
	render(c, http.StatusOK, ScreenOrders, data)
}
