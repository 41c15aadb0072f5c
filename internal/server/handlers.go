package server

import (
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"TokenVault/internal/core"
	"TokenVault/internal/registry"
)

const callerHeader = "X-Caller-ID"

type registerAssetRequest struct {
	AssetID    string `json:"asset_id" binding:"required"`
	FeedID     string `json:"feed_id" binding:"required"`
	PerTxLimit string `json:"per_tx_limit" binding:"required"`
	Decimals   *uint8 `json:"decimals"`
}

type updateLimitRequest struct {
	PerTxLimit string `json:"per_tx_limit" binding:"required"`
}

type updateSourceRequest struct {
	FeedID string `json:"feed_id" binding:"required"`
}

type movementRequest struct {
	Holder string `json:"holder" binding:"required,uuid"`
	Asset  string `json:"asset"`
	Amount string `json:"amount" binding:"required"`
}

type emergencyRequest struct {
	Asset       string `json:"asset"`
	Destination string `json:"destination" binding:"required"`
}

type assetResponse struct {
	AssetID    string `json:"asset_id"`
	Decimals   uint8  `json:"decimals"`
	PerTxLimit string `json:"per_tx_limit"`
	Native     bool   `json:"native"`
}

type receiptResponse struct {
	Sequence       int64  `json:"sequence"`
	EventID        string `json:"event_id"`
	AssetID        string `json:"asset_id"`
	Amount         string `json:"amount"`
	CanonicalValue string `json:"canonical_value"`
	Timestamp      string `json:"timestamp"`
}

func receiptJSON(r *core.Receipt) receiptResponse {
	return receiptResponse{
		Sequence:       r.Sequence,
		EventID:        r.EventID.String(),
		AssetID:        r.AssetID,
		Amount:         r.Amount.String(),
		CanonicalValue: r.CanonicalValue.String(),
		Timestamp:      r.Timestamp.UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
	}
}

func assetJSON(a core.AssetInfo) assetResponse {
	return assetResponse{
		AssetID:    a.ID,
		Decimals:   a.Decimals,
		PerTxLimit: a.PerTxLimit.String(),
		Native:     a.Native,
	}
}

// caller extracts the authenticated principal from the request. Identity is
// asserted upstream; the ledger only needs a stable UUID to check roles on.
func caller(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetHeader(callerHeader)
	if raw == "" {
		respondError(c, http.StatusUnauthorized, "missing "+callerHeader+" header")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "invalid "+callerHeader+" header")
		return uuid.Nil, false
	}
	return id, true
}

func parseAmount(c *gin.Context, raw string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		respondError(c, http.StatusBadRequest, "amount must be a base-10 integer")
		return nil, false
	}
	return n, true
}

func parseHolder(c *gin.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "holder must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// dispatch runs fn on the engine goroutine. All engine access goes through
// here so handlers never race each other.
func (s *Server) dispatch(c *gin.Context, fn func()) bool {
	if err := s.dispatcher.Do(c.Request.Context(), fn); err != nil {
		respondError(c, http.StatusServiceUnavailable, "ledger unavailable: "+err.Error())
		return false
	}
	return true
}

// --- Asset administration -------------------------------------------------

func (s *Server) registerAsset(c *gin.Context) {
	var req registerAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	callerID, ok := caller(c)
	if !ok {
		return
	}
	limit, ok := parseAmount(c, req.PerTxLimit)
	if !ok {
		return
	}
	decimals := registry.DecimalsAuto
	if req.Decimals != nil {
		decimals = *req.Decimals
	}

	spec := registry.Asset{
		ID:         req.AssetID,
		Decimals:   decimals,
		Source:     s.feeds.Source(req.FeedID),
		PerTxLimit: limit,
	}

	var (
		registered *registry.Asset
		opErr      error
	)
	if !s.dispatch(c, func() {
		registered, opErr = s.engine.RegisterAsset(c.Request.Context(), callerID, spec, req.FeedID)
	}) {
		return
	}
	if opErr != nil {
		respondEngineError(c, opErr)
		return
	}
	c.JSON(http.StatusCreated, assetResponse{
		AssetID:    registered.ID,
		Decimals:   registered.Decimals,
		PerTxLimit: registered.PerTxLimit.String(),
	})
}

func (s *Server) listAssets(c *gin.Context) {
	var assets []core.AssetInfo
	if !s.dispatch(c, func() {
		assets = s.engine.ListAssets()
	}) {
		return
	}
	out := make([]assetResponse, 0, len(assets))
	for _, a := range assets {
		out = append(out, assetJSON(a))
	}
	c.JSON(http.StatusOK, gin.H{"assets": out})
}

func (s *Server) getLimit(c *gin.Context) {
	assetID := c.Param("id")
	var (
		limit *big.Int
		opErr error
	)
	if !s.dispatch(c, func() {
		limit, opErr = s.engine.PerAssetLimit(assetID)
	}) {
		return
	}
	if opErr != nil {
		respondEngineError(c, opErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset_id": assetID, "per_tx_limit": limit.String()})
}

func (s *Server) updateLimit(c *gin.Context) {
	var req updateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	callerID, ok := caller(c)
	if !ok {
		return
	}
	limit, ok := parseAmount(c, req.PerTxLimit)
	if !ok {
		return
	}
	assetID := c.Param("id")

	var opErr error
	if !s.dispatch(c, func() {
		opErr = s.engine.UpdateLimit(c.Request.Context(), callerID, assetID, limit)
	}) {
		return
	}
	if opErr != nil {
		respondEngineError(c, opErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset_id": assetID, "per_tx_limit": limit.String()})
}

func (s *Server) updatePriceSource(c *gin.Context) {
	var req updateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	callerID, ok := caller(c)
	if !ok {
		return
	}
	assetID := c.Param("id")
	src := s.feeds.Source(req.FeedID)

	var opErr error
	if !s.dispatch(c, func() {
		opErr = s.engine.UpdatePriceSource(c.Request.Context(), callerID, assetID, src, req.FeedID)
	}) {
		return
	}
	if opErr != nil {
		respondEngineError(c, opErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset_id": assetID, "feed_id": req.FeedID})
}

// --- Movements ------------------------------------------------------------

func (s *Server) deposit(c *gin.Context) {
	s.movement(c, func(req core.DepositRequest) (*core.Receipt, error) {
		return s.engine.Deposit(c.Request.Context(), req)
	})
}

func (s *Server) withdraw(c *gin.Context) {
	s.movement(c, func(req core.DepositRequest) (*core.Receipt, error) {
		return s.engine.Withdraw(c.Request.Context(), core.WithdrawRequest(req))
	})
}

func (s *Server) movement(c *gin.Context, run func(core.DepositRequest) (*core.Receipt, error)) {
	var req movementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	holder, ok := parseHolder(c, req.Holder)
	if !ok {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}

	var (
		receipt *core.Receipt
		opErr   error
	)
	if !s.dispatch(c, func() {
		receipt, opErr = run(core.DepositRequest{Holder: holder, Asset: req.Asset, Amount: amount})
	}) {
		return
	}
	if opErr != nil {
		respondEngineError(c, opErr)
		return
	}
	c.JSON(http.StatusOK, receiptJSON(receipt))
}

func (s *Server) emergencyWithdraw(c *gin.Context) {
	var req emergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	callerID, ok := caller(c)
	if !ok {
		return
	}

	var (
		moved *big.Int
		opErr error
	)
	if !s.dispatch(c, func() {
		moved, opErr = s.engine.EmergencyWithdraw(c.Request.Context(), callerID, req.Asset, req.Destination)
	}) {
		return
	}
	if opErr != nil {
		respondEngineError(c, opErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"asset":       req.Asset,
		"destination": req.Destination,
		"amount":      moved.String(),
	})
}

// --- Live balance and valuation -------------------------------------------

func (s *Server) getBalance(c *gin.Context) {
	holder, ok := parseHolder(c, c.Param("holder"))
	if !ok {
		return
	}
	assetID := c.Param("asset")

	var bal *big.Int
	if !s.dispatch(c, func() {
		bal = s.engine.BalanceOf(assetID, holder)
	}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"asset_id": assetID,
		"holder":   holder.String(),
		"balance":  bal.String(),
	})
}

func (s *Server) getCanonicalValue(c *gin.Context) {
	holder, ok := parseHolder(c, c.Param("holder"))
	if !ok {
		return
	}
	assetID := c.Param("asset")

	var (
		value *big.Int
		opErr error
	)
	if !s.dispatch(c, func() {
		value, opErr = s.engine.CanonicalValueOf(c.Request.Context(), assetID, holder)
	}) {
		return
	}
	if opErr != nil {
		respondEngineError(c, opErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"asset_id": assetID,
		"holder":   holder.String(),
		"value":    value.String(),
	})
}

func (s *Server) totalValue(c *gin.Context) {
	var (
		total *big.Int
		opErr error
	)
	if !s.dispatch(c, func() {
		total, opErr = s.engine.TotalCanonicalValue(c.Request.Context())
	}) {
		return
	}
	if opErr != nil {
		respondEngineError(c, opErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total.String()})
}

func (s *Server) capacity(c *gin.Context) {
	var (
		avail *big.Int
		opErr error
	)
	if !s.dispatch(c, func() {
		avail, opErr = s.engine.AvailableCapacity(c.Request.Context())
	}) {
		return
	}
	if opErr != nil {
		respondEngineError(c, opErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"limit":     s.engine.CapacityLimit().String(),
		"available": avail.String(),
	})
}

func (s *Server) convert(c *gin.Context) {
	assetID := c.Query("asset")
	amount, ok := parseAmount(c, c.Query("amount"))
	if !ok {
		return
	}

	var (
		value *big.Int
		opErr error
	)
	if !s.dispatch(c, func() {
		value, opErr = s.engine.ConvertToCanonical(c.Request.Context(), assetID, amount)
	}) {
		return
	}
	if opErr != nil {
		respondEngineError(c, opErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"asset_id": assetID,
		"amount":   amount.String(),
		"value":    value.String(),
	})
}

// --- Projection-backed queries --------------------------------------------

func (s *Server) listHolderBalances(c *gin.Context) {
	holder, ok := parseHolder(c, c.Param("holder"))
	if !ok {
		return
	}
	records, err := s.queries.ListHolderBalances(c.Request.Context(), holder)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"holder": holder.String(), "balances": records})
}

func (s *Server) listEvents(c *gin.Context) {
	after, err := parseInt64Query(c, "after", 0)
	if err != nil {
		respondError(c, http.StatusBadRequest, "after must be an integer")
		return
	}
	limit, err := parseInt64Query(c, "limit", 0)
	if err != nil {
		respondError(c, http.StatusBadRequest, "limit must be an integer")
		return
	}

	var holder *uuid.UUID
	if raw := c.Query("holder"); raw != "" {
		id, perr := uuid.Parse(raw)
		if perr != nil {
			respondError(c, http.StatusBadRequest, "holder must be a UUID")
			return
		}
		holder = &id
	}

	records, err := s.queries.ListEvents(c.Request.Context(), c.Query("asset"), holder, after, int(limit))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": records})
}

func (s *Server) verifyIntegrity(c *gin.Context) {
	report, err := s.queries.VerifyIntegrity(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}
