package services

import (
	"context"
	"strings"

	"canteen-backend/internal/models"
	"canteen-backend/internal/repositories"
)

// CatalogService fronts the catalog repositories. The order engine consumes
// the read paths; the admin surface uses the write paths.
type CatalogService struct {
	products   *repositories.ProductRepository
	categories *repositories.CategoryRepository
	combos     *repositories.ComboRepository
	kioskTypes *repositories.KioskTypeRepository
}

func NewCatalogService(
	products *repositories.ProductRepository,
	categories *repositories.CategoryRepository,
	combos *repositories.ComboRepository,
	kioskTypes *repositories.KioskTypeRepository,
) *CatalogService {
	return &CatalogService{
		products:   products,
		categories: categories,
		combos:     combos,
		kioskTypes: kioskTypes,
	}
}

// --- read paths (order engine) ---

func (s *CatalogService) GetProduct(ctx context.Context, theaterID, id int) (*models.Product, error) {
	return s.products.GetForTheater(ctx, theaterID, id)
}

func (s *CatalogService) GetForTheater(ctx context.Context, theaterID, id int) (*models.Product, error) {
	return s.products.GetForTheater(ctx, theaterID, id)
}

func (s *CatalogService) GetByIDs(ctx context.Context, theaterID int, ids []int) (map[int]*models.Product, error) {
	return s.products.GetByIDs(ctx, theaterID, ids)
}

func (s *CatalogService) ListProducts(ctx context.Context, filter *models.ProductFilter) ([]*models.Product, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.products.List(ctx, filter)
}

func (s *CatalogService) GetActiveCombo(ctx context.Context, theaterID, id int) (*models.Combo, error) {
	return s.combos.GetActiveForTheater(ctx, theaterID, id)
}

func (s *CatalogService) ListCategories(ctx context.Context, theaterID int, activeOnly bool) ([]*models.CategoryWithItems, error) {
	return s.categories.ListWithCounts(ctx, theaterID, activeOnly)
}

func (s *CatalogService) ListCombos(ctx context.Context, theaterID int, activeOnly bool) ([]*models.Combo, error) {
	return s.combos.List(ctx, theaterID, activeOnly)
}

func (s *CatalogService) ListKioskTypes(ctx context.Context, theaterID int) ([]*models.KioskType, error) {
	return s.kioskTypes.List(ctx, theaterID)
}

func (s *CatalogService) GetKioskType(ctx context.Context, id int) (*models.KioskType, error) {
	return s.kioskTypes.Get(ctx, id)
}

// --- write paths (admin surface) ---

func (s *CatalogService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	if err := validateProduct(req.Name, req.BasePrice, req.SalePrice, req.TaxRate); err != nil {
		return nil, err
	}
	p := &models.Product{
		TheaterID:    req.TheaterID,
		CategoryID:   req.CategoryID,
		KioskTypeID:  req.KioskTypeID,
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		BasePrice:    req.BasePrice,
		SalePrice:    req.SalePrice,
		TaxRate:      req.TaxRate,
		GSTInclusive: req.GSTInclusive,
		TrackStock:   req.TrackStock,
		MinStock:     req.MinStock,
		MaxStock:     req.MaxStock,
		StockUnit:    defaultUnit(req.StockUnit),
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, theaterID, id int, req *models.UpdateProductRequest) (*models.Product, error) {
	if err := validateProduct(req.Name, req.BasePrice, req.SalePrice, req.TaxRate); err != nil {
		return nil, err
	}
	p, err := s.products.GetForTheater(ctx, theaterID, id)
	if err != nil {
		return nil, err
	}
	p.CategoryID = req.CategoryID
	p.KioskTypeID = req.KioskTypeID
	p.Name = strings.TrimSpace(req.Name)
	p.Description = req.Description
	p.ImageURL = req.ImageURL
	p.BasePrice = req.BasePrice
	p.SalePrice = req.SalePrice
	p.TaxRate = req.TaxRate
	p.GSTInclusive = req.GSTInclusive
	p.TrackStock = req.TrackStock
	p.MinStock = req.MinStock
	p.MaxStock = req.MaxStock
	p.StockUnit = defaultUnit(req.StockUnit)
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.IsAvailable != nil {
		p.IsAvailable = *req.IsAvailable
	}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) SetProductAvailability(ctx context.Context, theaterID, id int, available bool) error {
	return s.products.SetAvailability(ctx, theaterID, id, available)
}

func (s *CatalogService) DeactivateProduct(ctx context.Context, theaterID, id int) error {
	return s.products.Deactivate(ctx, theaterID, id)
}

func (s *CatalogService) CreateCategory(ctx context.Context, req *models.CreateCategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, models.NewValidationError("category name is required", map[string]string{"name": "required"})
	}
	c := &models.Category{
		TheaterID: req.TheaterID,
		Name:      name,
		Type:      req.Type,
		SortOrder: req.SortOrder,
	}
	if c.Type == "" {
		c.Type = "food"
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, theaterID, id int, req *models.UpdateCategoryRequest) (*models.Category, error) {
	c, err := s.categories.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.TheaterID != theaterID {
		return nil, models.NewNotFoundError("category")
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		c.Name = name
	}
	if req.Type != "" {
		c.Type = req.Type
	}
	c.SortOrder = req.SortOrder
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, theaterID, id int) error {
	c, err := s.categories.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.TheaterID != theaterID {
		return models.NewNotFoundError("category")
	}
	return s.categories.Delete(ctx, id)
}

func (s *CatalogService) CreateCombo(ctx context.Context, req *models.CreateComboRequest) (*models.Combo, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, models.NewValidationError("combo name is required", map[string]string{"name": "required"})
	}
	if len(req.Items) == 0 {
		return nil, models.NewValidationError("combo needs at least one item", map[string]string{"items": "required"})
	}
	if req.CurrentPrice < 0 || req.ActualPrice < 0 {
		return nil, models.NewValidationError("combo prices must be non-negative", nil)
	}
	if req.CurrentPrice > req.ActualPrice {
		return nil, models.NewValidationError("combo price cannot exceed the sum of components", nil)
	}
	c := &models.Combo{
		TheaterID:    req.TheaterID,
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		ActualPrice:  req.ActualPrice,
		CurrentPrice: req.CurrentPrice,
		TaxRate:      req.TaxRate,
		GSTInclusive: req.GSTInclusive,
		Items:        req.Items,
	}
	if err := s.combos.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) UpdateCombo(ctx context.Context, theaterID, id int, req *models.UpdateComboRequest) (*models.Combo, error) {
	c, err := s.combos.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.TheaterID != theaterID {
		return nil, models.NewNotFoundError("combo")
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		c.Name = name
	}
	if req.Description != "" {
		c.Description = req.Description
	}
	if req.ImageURL != "" {
		c.ImageURL = req.ImageURL
	}
	if req.ActualPrice != nil {
		c.ActualPrice = *req.ActualPrice
	}
	if req.CurrentPrice != nil {
		c.CurrentPrice = *req.CurrentPrice
	}
	if req.TaxRate != nil {
		c.TaxRate = *req.TaxRate
	}
	if req.GSTInclusive != nil {
		c.GSTInclusive = *req.GSTInclusive
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if req.Items != nil {
		c.Items = req.Items
	}
	if c.CurrentPrice < 0 || c.ActualPrice < 0 || c.CurrentPrice > c.ActualPrice {
		return nil, models.NewValidationError("combo prices must satisfy 0 <= current <= actual", nil)
	}
	if err := s.combos.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CatalogService) DeactivateCombo(ctx context.Context, theaterID, id int) error {
	return s.combos.Deactivate(ctx, theaterID, id)
}

func (s *CatalogService) CreateKioskType(ctx context.Context, req *models.CreateKioskTypeRequest) (*models.KioskType, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, models.NewValidationError("kiosk type name is required", map[string]string{"name": "required"})
	}
	k := &models.KioskType{
		TheaterID:   req.TheaterID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		PrinterHint: req.PrinterHint,
	}
	if err := s.kioskTypes.Create(ctx, k); err != nil {
		return nil, err
	}
	return k, nil
}

func validateProduct(name string, basePrice float64, salePrice *float64, taxRate float64) error {
	fields := map[string]string{}
	if strings.TrimSpace(name) == "" {
		fields["name"] = "required"
	}
	if basePrice < 0 {
		fields["base_price"] = "must be non-negative"
	}
	if salePrice != nil && (*salePrice < 0 || *salePrice > basePrice) {
		fields["sale_price"] = "must be between 0 and base_price"
	}
	if taxRate < 0 || taxRate > 100 {
		fields["tax_rate"] = "must be 0..100"
	}
	if len(fields) > 0 {
		return models.NewValidationError("invalid product", fields)
	}
	return nil
}

func defaultUnit(u string) string {
	if strings.TrimSpace(u) == "" {
		return "pcs"
	}
	return u
}
