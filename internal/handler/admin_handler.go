package handler

import (
	"net/http"
	"strconv"

	"onlinestore/internal/config"
	"onlinestore/internal/middleware"
	"onlinestore/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// ProductCreateRequest は商品と初期在庫
type ProductCreateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
}

type StockCreateRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type StockAdjustRequest struct {
	Amount int64 `json:"amount"`
}

// /admin/products と /admin/stocks をまとめる
type AdminHandler struct {
	products  *usecase.ProductUsecase
	inventory *usecase.InventoryUsecase
}

// DI
func NewAdminHandler(products *usecase.ProductUsecase, inventory *usecase.InventoryUsecase) *AdminHandler {
	return &AdminHandler{products: products, inventory: inventory}
}

// adminを登録
func (h *AdminHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	admin := e.Group("/admin")

	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.AdminRoleGuard())

	admin.POST("/products", h.createProduct)
	admin.GET("/products/:id", h.getProduct)
	admin.POST("/stocks", h.createStock)
	admin.GET("/stocks/:productId", h.getStock)
	admin.POST("/stocks/:productId/increase", h.increaseStock)
	admin.POST("/stocks/:productId/decrease", h.decreaseStock)
}

func (h *AdminHandler) createProduct(c echo.Context) error {
	var req ProductCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.products.AdminCreateProduct(c.Request().Context(), usecase.AdminCreateProductInput{
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		InitialStock: req.Stock,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}

func (h *AdminHandler) getProduct(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.products.GetProduct(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) createStock(c echo.Context) error {
	var req StockCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.inventory.CreateInitial(c.Request().Context(), req.ProductID, req.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *AdminHandler) getStock(c echo.Context) error {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid productId"})
	}

	out, err := h.inventory.Get(c.Request().Context(), productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) increaseStock(c echo.Context) error {
	productID, req, err := bindAdjust(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	out, err := h.inventory.Increase(c.Request().Context(), productID, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) decreaseStock(c echo.Context) error {
	productID, req, err := bindAdjust(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	out, err := h.inventory.Decrease(c.Request().Context(), productID, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func bindAdjust(c echo.Context) (int64, StockAdjustRequest, error) {
	var req StockAdjustRequest

	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		return 0, req, errInvalidProductID
	}
	if err := c.Bind(&req); err != nil {
		return 0, req, errInvalidBody
	}
	return productID, req, nil
}
