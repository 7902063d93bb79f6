package handler

import (
	"net/http"
	"time"

	"stockledger/internal/apierror"
	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

// ReservationHandler exposes the reservation manager over HTTP.
type ReservationHandler struct {
	reservations service.ReservationService
}

func NewReservationHandler(reservations service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

// Reserve godoc
// @Summary      Soft-allocate available stock to a business document
// @Tags         reservations
// @Accept       json
// @Produce      json
// @Param        request body dto.ReserveRequest true "Reservation"
// @Success      201 {object} dto.ReservationResponse
// @Failure      409 {object} apierror.APIError
// @Failure      422 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/reservations [post]
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req dto.ReserveRequest
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
	expiry, err := time.Parse(time.RFC3339, req.ExpiryDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid expiry_date: expected RFC 3339"))
		return
	}

	res, err := h.reservations.Reserve(c.Request.Context(), actor, warehouseID, productID, req.Quantity, req.ReferenceType, req.ReferenceID, expiry)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toReservationResponse(res))
}

// Fulfill godoc
// @Summary      Advance the fulfilled counter of a reservation
// @Tags         reservations
// @Accept       json
// @Produce      json
// @Param        id path string true "Reservation ID"
// @Param        request body dto.FulfillRequest true "Fulfillment"
// @Success      200 {object} dto.ReservationResponse
// @Failure      409 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/reservations/{id}/fulfill [post]
func (h *ReservationHandler) Fulfill(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.FulfillRequest
	if !bindAndValidate(c, &req) {
		return
	}

	res, err := h.reservations.Fulfill(c.Request.Context(), id, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

// Cancel godoc
// @Summary      Cancel a reservation, returning remaining quantity to available
// @Tags         reservations
// @Produce      json
// @Param        id path string true "Reservation ID"
// @Success      200 {object} dto.ReservationResponse
// @Failure      404 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.reservations.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

// Get godoc
// @Summary      Get one reservation by id
// @Tags         reservations
// @Produce      json
// @Param        id path string true "Reservation ID"
// @Success      200 {object} dto.ReservationResponse
// @Failure      404 {object} apierror.APIError
// @Security     BearerAuth
// @Router       /v1/reservations/{id} [get]
func (h *ReservationHandler) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	res, err := h.reservations.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReservationResponse(res))
}

// ListByReference godoc
// @Summary      List reservations linked to a business document
// @Tags         reservations
// @Produce      json
// @Param        reference_type query string true "Reference type"
// @Param        reference_id query string true "Reference id"
// @Success      200 {array} dto.ReservationResponse
// @Security     BearerAuth
// @Router       /v1/reservations [get]
func (h *ReservationHandler) ListByReference(c *gin.Context) {
	refType := c.Query("reference_type")
	refID := c.Query("reference_id")
	if refType == "" || refID == "" {
		c.JSON(http.StatusBadRequest, apierror.New("reference_type and reference_id are required"))
		return
	}
	list, err := h.reservations.ListByReference(c.Request.Context(), refType, refID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]dto.ReservationResponse, 0, len(list))
	for i := range list {
		out = append(out, toReservationResponse(&list[i]))
	}
	c.JSON(http.StatusOK, out)
}

func toReservationResponse(r *model.Reservation) dto.ReservationResponse {
	return dto.ReservationResponse{
		ID:                r.ID.String(),
		ReservationNumber: r.ReservationNumber,
		WarehouseID:       r.WarehouseID.String(),
		ProductID:         r.ProductID.String(),
		ReservedQuantity:  r.ReservedQuantity,
		FulfilledQuantity: r.FulfilledQuantity,
		RemainingQuantity: r.RemainingQuantity(),
		Status:            string(r.Status),
		ReferenceType:     r.ReferenceType,
		ReferenceID:       r.ReferenceID,
		ExpiryDate:        r.ExpiryDate.UTC().Format(time.RFC3339Nano),
		CreatedAt:         r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
