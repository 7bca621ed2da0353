package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sales_service/internal/sales"
)

// salesHandler holds the sales service and implements HTTP handlers for sales operations.
type salesHandler struct {
	salesService *sales.Service
	logger       *zap.Logger
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(salesService *sales.Service, logger *zap.Logger) *salesHandler {
	return &salesHandler{
		salesService: salesService,
		logger:       logger,
	}
}

// listQuery is the query string accepted by GET /sales.
type listQuery struct {
	Page            int       `form:"page"`
	PageSize        int       `form:"page_size"`
	OrderBy         string    `form:"order_by"`
	SaleNumber      string    `form:"sale_number"`
	CustomerName    string    `form:"customer_name"`
	Branch          string    `form:"branch"`
	ItemDescription string    `form:"item_description"`
	ItemCategory    string    `form:"item_category"`
	MinSaleDate     time.Time `form:"min_sale_date"`
	MaxSaleDate     time.Time `form:"max_sale_date"`
}

// handleCreateSale handles the POST /sales endpoint.
func (h *salesHandler) handleCreateSale(ctx *gin.Context) {
	var req sales.CreateSaleInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	sale, err := h.salesService.CreateSale(ctx.Request.Context(), req)
	if err != nil {
		h.writeError(ctx, "failed to create sale", err)
		return
	}

	ctx.JSON(http.StatusCreated, newSaleResponse(sale))
}

// handleUpdateSale handles the PUT /sales/:id endpoint.
func (h *salesHandler) handleUpdateSale(ctx *gin.Context) {
	saleID := ctx.Param("id")
	var req sales.UpdateSaleInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("failed to bind JSON request", zap.String("sale_id", saleID), zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	sale, err := h.salesService.UpdateSale(ctx.Request.Context(), saleID, req)
	if err != nil {
		h.writeError(ctx, "failed to update sale", err)
		return
	}

	ctx.JSON(http.StatusOK, newSaleResponse(sale))
}

func (h *salesHandler) handleGetSale(ctx *gin.Context) {
	sale, err := h.salesService.GetSale(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		h.writeError(ctx, "failed to get sale", err)
		return
	}
	ctx.JSON(http.StatusOK, newSaleResponse(sale))
}

func (h *salesHandler) handleDeleteSale(ctx *gin.Context) {
	if err := h.salesService.DeleteSale(ctx.Request.Context(), ctx.Param("id")); err != nil {
		h.writeError(ctx, "failed to delete sale", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// handleListSales handles GET /sales with filters, ordering and paging.
func (h *salesHandler) handleListSales(ctx *gin.Context) {
	var q listQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		h.logger.Warn("failed to bind query", zap.Error(err))
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	result, err := h.salesService.ListSales(ctx.Request.Context(), sales.SaleFilter{
		MinSaleDate:     q.MinSaleDate,
		MaxSaleDate:     q.MaxSaleDate,
		SaleNumber:      q.SaleNumber,
		CustomerName:    q.CustomerName,
		Branch:          q.Branch,
		ItemDescription: q.ItemDescription,
		ItemCategory:    q.ItemCategory,
		Page:            q.Page,
		PageSize:        q.PageSize,
		OrderBy:         q.OrderBy,
	})
	if err != nil {
		h.writeError(ctx, "failed to search sales", err)
		return
	}

	ctx.JSON(http.StatusOK, newPagedResponse(result))
}

func (h *salesHandler) writeError(ctx *gin.Context, msg string, err error) {
	var ve *sales.ValidationError
	var rv *sales.RuleViolationError

	switch {
	case errors.As(err, &ve):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": sales.ErrValidation.Error(), "details": ve.Fields})
	case errors.As(err, &rv):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": sales.ErrRuleViolation.Error(), "details": []sales.FieldViolation{{
			Field:   "items[" + strconv.Itoa(rv.Index) + "].quantity",
			Message: "must be at most " + strconv.Itoa(sales.MaxItemQuantity),
		}}})
	case errors.Is(err, sales.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
	default:
		h.logger.Error(msg, zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
