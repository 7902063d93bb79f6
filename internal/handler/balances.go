package handler

import (
	"net/http"
	"time"

	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

// BalanceHandler exposes the balance table read side.
type BalanceHandler struct {
	reports service.ReportService
}

func NewBalanceHandler(reports service.ReportService) *BalanceHandler {
	return &BalanceHandler{reports: reports}
}

// List godoc
// @Summary      List stock balances
// @Tags         balances
// @Produce      json
// @Param        warehouse_id query string false "Warehouse"
// @Param        product_id query string false "Product"
// @Param        page query int false "Page (1-based)"
// @Param        limit query int false "Page size"
// @Success      200 {object} dto.BalanceListResponse
// @Security     BearerAuth
// @Router       /v1/balances [get]
func (h *BalanceHandler) List(c *gin.Context) {
	filter := repository.BalanceFilter{
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", 50),
	}
	var ok bool
	if filter.WarehouseID, ok = queryUUID(c, "warehouse_id"); !ok {
		return
	}
	if filter.ProductID, ok = queryUUID(c, "product_id"); !ok {
		return
	}

	balances, total, err := h.reports.Balances(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := dto.BalanceListResponse{
		Data:  make([]dto.BalanceResponse, 0, len(balances)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range balances {
		resp.Data = append(resp.Data, toBalanceResponse(&balances[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// LowStock godoc
// @Summary      List balances at or under their reorder point
// @Tags         balances
// @Produce      json
// @Param        warehouse_id query string false "Warehouse"
// @Success      200 {array} dto.BalanceResponse
// @Security     BearerAuth
// @Router       /v1/balances/low-stock [get]
func (h *BalanceHandler) LowStock(c *gin.Context) {
	warehouseID, ok := queryUUID(c, "warehouse_id")
	if !ok {
		return
	}
	balances, err := h.reports.BelowReorderPoint(c.Request.Context(), warehouseID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.BalanceResponse, 0, len(balances))
	for i := range balances {
		out = append(out, toBalanceResponse(&balances[i]))
	}
	c.JSON(http.StatusOK, out)
}

func toBalanceResponse(b *model.StockBalance) dto.BalanceResponse {
	resp := dto.BalanceResponse{
		WarehouseID:        b.WarehouseID.String(),
		ProductID:          b.ProductID.String(),
		Quantity:           b.Quantity,
		AvailableQuantity:  b.AvailableQuantity,
		ReservedQuantity:   b.ReservedQuantity,
		QuarantineQuantity: b.QuarantineQuantity,
		DamagedQuantity:    b.DamagedQuantity,
		UnitOfMeasure:      b.UnitOfMeasure,
		ReorderPoint:       b.ReorderPoint,
	}
	if b.LastMovementDate != nil {
		v := b.LastMovementDate.UTC().Format(time.RFC3339Nano)
		resp.LastMovementDate = &v
	}
	return resp
}
