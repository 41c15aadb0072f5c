package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"TokenVault/internal/balance"
	"TokenVault/internal/core"
	"TokenVault/internal/registry"
	"TokenVault/internal/valuation"
)

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func respondEngineError(c *gin.Context, err error) {
	respondError(c, statusFor(err), err.Error())
}

// statusFor maps ledger errors onto HTTP statuses. Caller mistakes are 4xx,
// collaborator failures are 502, and a busy engine is 503 so clients retry.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrZeroAmount),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDestination),
		errors.Is(err, registry.ErrInvalidAsset),
		errors.Is(err, registry.ErrInvalidLimit),
		errors.Is(err, registry.ErrInvalidPriceSource):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, registry.ErrNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, balance.ErrInsufficientBalance),
		errors.Is(err, core.ErrOverPerTxLimit),
		errors.Is(err, core.ErrOverGlobalCapacity),
		errors.Is(err, registry.ErrTooManyAssets):
		return http.StatusUnprocessableEntity
	case errors.Is(err, valuation.ErrPriceUnavailable),
		errors.Is(err, valuation.ErrInvalidPrice),
		errors.Is(err, core.ErrTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrReentrantCall):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseInt64Query(c *gin.Context, key string, def int64) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
