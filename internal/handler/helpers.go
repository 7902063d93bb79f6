package handler

import (
	"errors"
	"net/http"
	"reflect"
	"time"

	"stockledger/internal/apierror"
	"stockledger/internal/middleware"
	"stockledger/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails —
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// respondError maps the domain error taxonomy onto HTTP statuses so callers
// always get the specific rejection reason, never a generic failure.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidQuantity):
		c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
	case errors.Is(err, model.ErrUnknownItem), errors.Is(err, model.ErrUnknownWarehouse):
		c.JSON(http.StatusUnprocessableEntity, apierror.New(err.Error()))
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
	case errors.Is(err, model.ErrInsufficientStock),
		errors.Is(err, model.ErrIllegalStateTransition),
		errors.Is(err, model.ErrDuplicateReference):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, model.ErrBusy):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, apierror.New(err.Error()))
	default:
		// Unexpected — let the ErrorHandler middleware log it.
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("internal server error"))
	}
}

// actorID extracts the authenticated actor from the JWT claims set by the
// auth middleware. The engine trusts the caller's identity but records it.
func actorID(c *gin.Context) (uuid.UUID, bool) {
	claims, ok := c.Get(middleware.ClaimsKey)
	if !ok {
		c.JSON(http.StatusUnauthorized, apierror.New("authentication required"))
		return uuid.Nil, false
	}
	jc, ok := claims.(*middleware.JWTClaims)
	if !ok {
		c.JSON(http.StatusUnauthorized, apierror.New("authentication required"))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(jc.ActorID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apierror.New("malformed actor id"))
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// parseOptionalTime parses an RFC 3339 field, tolerating empty input.
func parseOptionalTime(c *gin.Context, value, field string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid "+field+": expected RFC 3339"))
		return time.Time{}, false
	}
	return t, true
}
