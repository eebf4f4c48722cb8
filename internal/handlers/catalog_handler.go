package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"canteen-backend/internal/models"
	"canteen-backend/internal/services"
	"canteen-backend/pkg/utils"
)

type CatalogHandler struct {
	catalog *services.CatalogService
}

func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func queryInt(r *http.Request, name string) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return 0
}

// ListProducts returns the theater's menu with optional filters
// GET /api/theaters/{id}/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	filter := &models.ProductFilter{
		TheaterID:   theaterID,
		CategoryID:  queryInt(r, "category_id"),
		KioskTypeID: queryInt(r, "kiosk_type_id"),
		Search:      r.URL.Query().Get("search"),
		ActiveOnly:  r.URL.Query().Get("active") == "true",
		Limit:       queryInt(r, "limit"),
		Offset:      queryInt(r, "offset"),
	}
	products, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, products)
}

// GetProduct returns one product
// GET /api/theaters/{id}/products/{productId}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	productID, ok := pathInt(r, "productId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid product id")
		return
	}
	product, err := h.catalog.GetProduct(r.Context(), theaterID, productID)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, product)
}

// CreateProduct adds a menu item
// POST /api/theaters/{id}/products
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	var req models.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.TheaterID = theaterID
	product, err := h.catalog.CreateProduct(r.Context(), &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, product)
}

// UpdateProduct changes a menu item
// PUT /api/theaters/{id}/products/{productId}
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	productID, ok := pathInt(r, "productId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req models.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	product, err := h.catalog.UpdateProduct(r.Context(), theaterID, productID, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, product)
}

// SetAvailability flips the sold-out flag without editing the product
// PATCH /api/theaters/{id}/products/{productId}/availability
func (h *CatalogHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	productID, ok := pathInt(r, "productId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.catalog.SetProductAvailability(r.Context(), theaterID, productID, req.Available); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusOK, "availability updated")
}

// DeactivateProduct removes a product from the menu
// DELETE /api/theaters/{id}/products/{productId}
func (h *CatalogHandler) DeactivateProduct(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	productID, ok := pathInt(r, "productId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if err := h.catalog.DeactivateProduct(r.Context(), theaterID, productID); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusOK, "product deactivated")
}

// ListCategories returns categories with active item counts
// GET /api/theaters/{id}/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	categories, err := h.catalog.ListCategories(r.Context(), theaterID, activeOnly)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, categories)
}

// CreateCategory adds a menu category
// POST /api/theaters/{id}/categories
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	var req models.CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.TheaterID = theaterID
	category, err := h.catalog.CreateCategory(r.Context(), &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, category)
}

// UpdateCategory changes a category
// PUT /api/theaters/{id}/categories/{categoryId}
func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	categoryID, ok := pathInt(r, "categoryId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid category id")
		return
	}
	var req models.UpdateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	category, err := h.catalog.UpdateCategory(r.Context(), theaterID, categoryID, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, category)
}

// DeleteCategory removes an empty category
// DELETE /api/theaters/{id}/categories/{categoryId}
func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	categoryID, ok := pathInt(r, "categoryId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid category id")
		return
	}
	if err := h.catalog.DeleteCategory(r.Context(), theaterID, categoryID); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusOK, "category deleted")
}

// ListCombos returns the theater's combos
// GET /api/theaters/{id}/combos
func (h *CatalogHandler) ListCombos(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	combos, err := h.catalog.ListCombos(r.Context(), theaterID, activeOnly)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, combos)
}

// CreateCombo adds a bundle
// POST /api/theaters/{id}/combos
func (h *CatalogHandler) CreateCombo(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	var req models.CreateComboRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.TheaterID = theaterID
	combo, err := h.catalog.CreateCombo(r.Context(), &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, combo)
}

// UpdateCombo changes a bundle; a non-nil items list replaces the components
// PUT /api/theaters/{id}/combos/{comboId}
func (h *CatalogHandler) UpdateCombo(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	comboID, ok := pathInt(r, "comboId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid combo id")
		return
	}
	var req models.UpdateComboRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	combo, err := h.catalog.UpdateCombo(r.Context(), theaterID, comboID, &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, combo)
}

// DeactivateCombo takes a bundle off the menu
// DELETE /api/theaters/{id}/combos/{comboId}
func (h *CatalogHandler) DeactivateCombo(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	comboID, ok := pathInt(r, "comboId")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid combo id")
		return
	}
	if err := h.catalog.DeactivateCombo(r.Context(), theaterID, comboID); err != nil {
		utils.Error(w, err)
		return
	}
	utils.Message(w, http.StatusOK, "combo deactivated")
}

// ListKioskTypes returns the theater's kiosk types
// GET /api/theaters/{id}/kiosk-types
func (h *CatalogHandler) ListKioskTypes(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	kioskTypes, err := h.catalog.ListKioskTypes(r.Context(), theaterID)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, kioskTypes)
}

// CreateKioskType adds a kiosk type
// POST /api/theaters/{id}/kiosk-types
func (h *CatalogHandler) CreateKioskType(w http.ResponseWriter, r *http.Request) {
	theaterID, ok := pathInt(r, "id")
	if !ok {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid theater id")
		return
	}
	var req models.CreateKioskTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorStatus(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.TheaterID = theaterID
	kioskType, err := h.catalog.CreateKioskType(r.Context(), &req)
	if err != nil {
		utils.Error(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, kioskType)
}
