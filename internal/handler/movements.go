package handler

import (
	"net/http"
	"strconv"
	"time"

	"stockledger/internal/apierror"
	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementHandler exposes the movement processing engine over HTTP.
type MovementHandler struct {
	ledger service.LedgerService
}

func NewMovementHandler(ledger service.LedgerService) *MovementHandler {
	return &MovementHandler{ledger: ledger}
}

// Receipt godoc
// @Summary      Record a stock receipt
// @Tags         movements
// @Accept       json
// @Produce      json
// @Param        request body dto.ReceiptRequest true "Receipt"
// @Success      201 {object} dto.MovementResponse
// @Failure      409 {object} apierror.APIError
// @Failure      422 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/movements/receipts [post]
func (h *MovementHandler) Receipt(c *gin.Context) {
	var req dto.ReceiptRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	warehouseID, productID, ok := parsePair(c, req.WarehouseID, req.ProductID)
	if !ok {
		return
	}
	opts, ok := movementOpts(c, req.UnitCost, req.ReferenceType, req.ReferenceID, req.MovementDate, req.RequireApproval)
	if !ok {
		return
	}

	m, err := h.ledger.RecordReceipt(c.Request.Context(), actor, warehouseID, productID, req.Quantity, req.UnitOfMeasure, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMovementResponse(m))
}

// Issue godoc
// @Summary      Record a stock issue, optionally against a reservation
// @Tags         movements
// @Accept       json
// @Produce      json
// @Param        request body dto.IssueRequest true "Issue"
// @Success      201 {object} dto.MovementResponse
// @Failure      409 {object} apierror.APIError
// @Failure      422 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/movements/issues [post]
func (h *MovementHandler) Issue(c *gin.Context) {
	var req dto.IssueRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	warehouseID, productID, ok := parsePair(c, req.WarehouseID, req.ProductID)
	if !ok {
		return
	}
	opts, ok := movementOpts(c, nil, req.ReferenceType, req.ReferenceID, req.MovementDate, req.RequireApproval)
	if !ok {
		return
	}
	if req.ReservationID != nil {
		id, err := uuid.Parse(*req.ReservationID)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("invalid reservation_id"))
			return
		}
		opts.ReservationID = &id
	}

	m, err := h.ledger.RecordIssue(c.Request.Context(), actor, warehouseID, productID, req.Quantity, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMovementResponse(m))
}

// Transfer godoc
// @Summary      Move stock between warehouses atomically
// @Tags         movements
// @Accept       json
// @Produce      json
// @Param        request body dto.TransferRequest true "Transfer"
// @Success      201 {object} dto.MovementResponse
// @Failure      409 {object} apierror.APIError
// @Failure      422 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/movements/transfers [post]
func (h *MovementHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	fromID, err := uuid.Parse(req.FromWarehouseID)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid from_warehouse_id"))
		return
	}
	toID, err := uuid.Parse(req.ToWarehouseID)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid to_warehouse_id"))
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid product_id"))
		return
	}
	opts, ok := movementOpts(c, nil, req.ReferenceType, req.ReferenceID, req.MovementDate, req.RequireApproval)
	if !ok {
		return
	}

	m, err := h.ledger.RecordTransfer(c.Request.Context(), actor, fromID, toID, productID, req.Quantity, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMovementResponse(m))
}

// Adjustment godoc
// @Summary      Correct a balance by a signed quantity
// @Tags         movements
// @Accept       json
// @Produce      json
// @Param        request body dto.AdjustmentRequest true "Adjustment"
// @Success      201 {object} dto.MovementResponse
// @Failure      409 {object} apierror.APIError
// @Failure      422 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/movements/adjustments [post]
func (h *MovementHandler) Adjustment(c *gin.Context) {
	var req dto.AdjustmentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	warehouseID, productID, ok := parsePair(c, req.WarehouseID, req.ProductID)
	if !ok {
		return
	}
	opts, ok := movementOpts(c, nil, "", "", req.MovementDate, req.RequireApproval)
	if !ok {
		return
	}

	m, err := h.ledger.RecordAdjustment(c.Request.Context(), actor, warehouseID, productID, req.SignedQuantity, req.Reason, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMovementResponse(m))
}

// Approve godoc
// @Summary      Approve a pending movement
// @Tags         movements
// @Produce      json
// @Param        id path string true "Movement ID"
// @Success      200 {object} dto.MovementResponse
// @Failure      409 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/movements/{id}/approve [post]
func (h *MovementHandler) Approve(c *gin.Context) {
	h.stateChange(c, func(ctx *gin.Context, id, actor uuid.UUID, _ string) (*model.Movement, error) {
		return h.ledger.Approve(ctx.Request.Context(), id, actor)
	})
}

// Reject godoc
// @Summary      Reject a pending movement
// @Tags         movements
// @Produce      json
// @Param        id path string true "Movement ID"
// @Success      200 {object} dto.MovementResponse
// @Failure      409 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/movements/{id}/reject [post]
func (h *MovementHandler) Reject(c *gin.Context) {
	h.stateChange(c, func(ctx *gin.Context, id, actor uuid.UUID, reason string) (*model.Movement, error) {
		return h.ledger.Reject(ctx.Request.Context(), id, actor, reason)
	})
}

// Complete godoc
// @Summary      Complete an approved movement, applying its balance effect
// @Tags         movements
// @Produce      json
// @Param        id path string true "Movement ID"
// @Success      200 {object} dto.MovementResponse
// @Failure      409 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/movements/{id}/complete [post]
func (h *MovementHandler) Complete(c *gin.Context) {
	h.stateChange(c, func(ctx *gin.Context, id, actor uuid.UUID, _ string) (*model.Movement, error) {
		return h.ledger.Complete(ctx.Request.Context(), id, actor)
	})
}

// Cancel godoc
// @Summary      Cancel a not-yet-completed movement
// @Tags         movements
// @Produce      json
// @Param        id path string true "Movement ID"
// @Success      200 {object} dto.MovementResponse
// @Failure      409 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/movements/{id}/cancel [post]
func (h *MovementHandler) Cancel(c *gin.Context) {
	h.stateChange(c, func(ctx *gin.Context, id, actor uuid.UUID, reason string) (*model.Movement, error) {
		return h.ledger.Cancel(ctx.Request.Context(), id, actor, reason)
	})
}

func (h *MovementHandler) stateChange(c *gin.Context, fn func(*gin.Context, uuid.UUID, uuid.UUID, string) (*model.Movement, error)) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.StateChangeRequest
	// Body is optional for approve/complete.
	_ = c.ShouldBindJSON(&req)

	m, err := fn(c, id, actor, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMovementResponse(m))
}

// Get godoc
// @Summary      Get one movement by id
// @Tags         movements
// @Produce      json
// @Param        id path string true "Movement ID"
// @Success      200 {object} dto.MovementResponse
// @Failure      404 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/movements/{id} [get]
func (h *MovementHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	m, err := h.ledger.GetMovement(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMovementResponse(m))
}

// List godoc
// @Summary      List movements with filters
// @Tags         movements
// @Produce      json
// @Param        warehouse_id query string false "Warehouse"
// @Param        product_id query string false "Product"
// @Param        type query string false "Movement type"
// @Param        status query string false "Movement status"
// @Param        from query string false "RFC 3339 lower bound"
// @Param        to query string false "RFC 3339 upper bound"
// @Param        page query int false "Page (1-based)"
// @Param        limit query int false "Page size"
// @Success      200 {object} dto.MovementListResponse
// @Security     BearerAuth
// @Router       /v1/movements [get]
func (h *MovementHandler) List(c *gin.Context) {
	filter := repository.MovementFilter{
		Type:   model.MovementType(c.Query("type")),
		Status: model.MovementStatus(c.Query("status")),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 50),
	}
	var ok bool
	if filter.WarehouseID, ok = queryUUID(c, "warehouse_id"); !ok {
		return
	}
	if filter.ProductID, ok = queryUUID(c, "product_id"); !ok {
		return
	}
	if filter.From, ok = queryTime(c, "from"); !ok {
		return
	}
	if filter.To, ok = queryTime(c, "to"); !ok {
		return
	}

	movements, total, err := h.ledger.ListMovements(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := dto.MovementListResponse{
		Data:  make([]dto.MovementResponse, 0, len(movements)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range movements {
		resp.Data = append(resp.Data, toMovementResponse(&movements[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// History godoc
// @Summary      Stream completed-movement history with a resumable cursor
// @Tags         movements
// @Produce      json
// @Param        warehouse_id query string false "Warehouse"
// @Param        product_id query string false "Product"
// @Param        from query string false "RFC 3339 lower bound"
// @Param        to query string false "RFC 3339 upper bound"
// @Param        cursor query string false "Resume token from a previous page"
// @Param        limit query int false "Page size"
// @Success      200 {object} dto.HistoryResponse
// @Security     BearerAuth
// @Router       /v1/movements/history [get]
func (h *MovementHandler) History(c *gin.Context) {
	filter := service.HistoryFilter{
		PageSize: queryInt(c, "limit", 200),
		Cursor:   c.Query("cursor"),
	}
	var ok bool
	if filter.WarehouseID, ok = queryUUID(c, "warehouse_id"); !ok {
		return
	}
	if filter.ProductID, ok = queryUUID(c, "product_id"); !ok {
		return
	}
	if filter.From, ok = queryTime(c, "from"); !ok {
		return
	}
	if filter.To, ok = queryTime(c, "to"); !ok {
		return
	}

	it := h.ledger.History(filter)
	resp := dto.HistoryResponse{Data: make([]dto.MovementResponse, 0, filter.PageSize)}
	for len(resp.Data) < filter.PageSize {
		m, more := it.Next(c.Request.Context())
		if !more {
			break
		}
		resp.Data = append(resp.Data, toMovementResponse(m))
	}
	if err := it.Err(); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	if len(resp.Data) == filter.PageSize {
		resp.Cursor = it.Cursor()
	}
	c.JSON(http.StatusOK, resp)
}

// ── Shared helpers ───────────────────────────────────────────────────────────

func parsePair(c *gin.Context, warehouse, product string) (uuid.UUID, uuid.UUID, bool) {
	warehouseID, err := uuid.Parse(warehouse)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid warehouse_id"))
		return uuid.Nil, uuid.Nil, false
	}
	productID, err := uuid.Parse(product)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid product_id"))
		return uuid.Nil, uuid.Nil, false
	}
	return warehouseID, productID, true
}

func movementOpts(c *gin.Context, unitCost *decimal.Decimal, refType, refID, date string, requireApproval bool) (service.MovementOpts, bool) {
	opts := service.MovementOpts{
		UnitCost:        unitCost,
		ReferenceType:   refType,
		ReferenceID:     refID,
		RequireApproval: requireApproval,
	}
	t, ok := parseOptionalTime(c, date, "movement_date")
	if !ok {
		return opts, false
	}
	opts.MovementDate = t
	return opts, true
}

func queryInt(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func queryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	id, err := uuid.Parse(v)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid "+name))
		return nil, false
	}
	return &id, true
}

func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid "+name+": expected RFC 3339"))
		return nil, false
	}
	return &t, true
}

func toMovementResponse(m *model.Movement) dto.MovementResponse {
	resp := dto.MovementResponse{
		ID:              m.ID.String(),
		ReferenceNumber: m.ReferenceNumber,
		WarehouseID:     m.WarehouseID.String(),
		ProductID:       m.ProductID.String(),
		Type:            string(m.Type),
		Status:          string(m.Status),
		Quantity:        m.Quantity,
		SignedQuantity:  m.SignedQuantity,
		UnitOfMeasure:   m.UnitOfMeasure,
		UnitCost:        m.UnitCost,
		ReferenceType:   m.ReferenceType,
		ReferenceID:     m.ReferenceID,
		Reason:          m.Reason,
		MovementDate:    m.MovementDate.UTC().Format(time.RFC3339Nano),
		CreatedBy:       m.CreatedBy.String(),
		CreatedAt:       m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if m.FromWarehouseID != nil {
		v := m.FromWarehouseID.String()
		resp.FromWarehouseID = &v
	}
	if m.ToWarehouseID != nil {
		v := m.ToWarehouseID.String()
		resp.ToWarehouseID = &v
	}
	if m.ReservationID != nil {
		v := m.ReservationID.String()
		resp.ReservationID = &v
	}
	if m.CompletedAt != nil {
		v := m.CompletedAt.UTC().Format(time.RFC3339Nano)
		resp.CompletedAt = &v
	}
	if m.ApprovedBy != nil {
		v := m.ApprovedBy.String()
		resp.ApprovedBy = &v
	}
	return resp
}
