package handler

import (
	"net/http"

	"stockledger/internal/apierror"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReportHandler exposes read-only aggregates over the movement store.
type ReportHandler struct {
	reports service.ReportService
}

func NewReportHandler(reports service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// MovementSummary godoc
// @Summary      Aggregate completed movements by type
// @Tags         reports
// @Produce      json
// @Param        warehouse_id query string false "Warehouse"
// @Param        product_id query string false "Product"
// @Param        from query string false "RFC 3339 lower bound"
// @Param        to query string false "RFC 3339 upper bound"
// @Success      200 {array} service.MovementSummaryRow
// @Security     BearerAuth
// @Router       /v1/reports/movement-summary [get]
func (h *ReportHandler) MovementSummary(c *gin.Context) {
	warehouseID, ok := queryUUID(c, "warehouse_id")
	if !ok {
		return
	}
	productID, ok := queryUUID(c, "product_id")
	if !ok {
		return
	}
	from, ok := queryTime(c, "from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return
	}

	rows, err := h.reports.MovementSummary(c.Request.Context(), warehouseID, productID, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Reconcile godoc
// @Summary      Replay the completed movement log against the stored balance
// @Tags         reports
// @Produce      json
// @Param        warehouse_id query string true "Warehouse"
// @Param        product_id query string true "Product"
// @Success      200 {object} service.ReconciliationResult
// @Failure      404 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/reports/reconciliation [get]
func (h *ReportHandler) Reconcile(c *gin.Context) {
	warehouseID, err := uuid.Parse(c.Query("warehouse_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid warehouse_id"))
		return
	}
	productID, err := uuid.Parse(c.Query("product_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid product_id"))
		return
	}

	result, err := h.reports.Reconcile(c.Request.Context(), warehouseID, productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
