package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"TokenVault/internal/auth"
	"TokenVault/internal/balance"
	"TokenVault/internal/event"
	"TokenVault/internal/observability"
	"TokenVault/internal/oracle"
	"TokenVault/internal/registry"
	"TokenVault/internal/transfer"
	"TokenVault/internal/valuation"
)

// maxAmount bounds input magnitude to 2^128-1 asset-native units. Anything
// larger is a malformed request, not a plausible balance.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Output carries one emitted event toward persistence and publishing.
// HolderBalance and AssetAggregate are the post-operation values backing the
// balance projections; they are nil for events that do not move funds.
type Output struct {
	Envelope       event.Envelope
	HolderBalance  *big.Int
	AssetAggregate *big.Int
}

// Engine orchestrates every ledger operation: validation, valuation,
// capacity enforcement, balance mutation, the external transfer leg, and
// event emission. It runs single-threaded behind a Dispatcher; the
// callGuard additionally rejects collaborator reentry.
type Engine struct {
	registry      *registry.Registry
	balances      *balance.Store
	valuer        *valuation.Valuer
	mover         transfer.Mover
	auth          auth.Authorizer
	capacityLimit *big.Int

	guard callGuard
	seq   int64

	// persistChan uses blocking sends so no event is lost; publishChan is
	// best-effort and drops on full.
	persistChan chan<- Output
	publishChan chan<- Output

	log     zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

type Config struct {
	Registry *registry.Registry
	Balances *balance.Store
	Mover    transfer.Mover
	Auth     auth.Authorizer

	// CapacityLimit is the global deposit ceiling in canonical units.
	// Immutable after construction.
	CapacityLimit *big.Int

	// StartSequence resumes event numbering after a restart. The first event
	// emitted gets StartSequence+1.
	StartSequence int64

	PersistChan chan<- Output
	PublishChan chan<- Output

	Logger  zerolog.Logger
	Metrics *observability.Metrics

	// Now overrides the event timestamp source. Tests inject a fixed clock.
	Now func() time.Time
}

func New(cfg Config) (*Engine, error) {
	if cfg.Registry == nil || cfg.Balances == nil {
		return nil, errors.New("core: registry and balance store are required")
	}
	if cfg.Mover == nil {
		return nil, errors.New("core: transfer mover is required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("core: authorizer is required")
	}
	if cfg.CapacityLimit == nil || cfg.CapacityLimit.Sign() <= 0 {
		return nil, errors.New("core: capacity limit must be positive")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	e := &Engine{
		registry:      cfg.Registry,
		balances:      cfg.Balances,
		valuer:        valuation.NewValuer(cfg.Registry, cfg.Balances),
		mover:         cfg.Mover,
		auth:          cfg.Auth,
		capacityLimit: new(big.Int).Set(cfg.CapacityLimit),
		seq:           cfg.StartSequence,
		persistChan:   cfg.PersistChan,
		publishChan:   cfg.PublishChan,
		log:           cfg.Logger,
		metrics:       cfg.Metrics,
		now:           now,
	}
	if e.metrics != nil {
		e.metrics.RegisteredAssets.Set(float64(e.registry.Count()))
	}
	return e, nil
}

// DepositRequest credits Holder with Amount of Asset. An empty Asset means
// the native asset: funds arriving with the call itself rather than pulled
// from a rail.
type DepositRequest struct {
	Holder uuid.UUID
	Asset  string
	Amount *big.Int
}

type WithdrawRequest struct {
	Holder uuid.UUID
	Asset  string
	Amount *big.Int
}

// Receipt describes a completed balance-changing operation.
type Receipt struct {
	Sequence       int64
	EventID        uuid.UUID
	AssetID        string
	Amount         *big.Int
	CanonicalValue *big.Int
	Timestamp      time.Time
}

// Deposit runs the full pipeline: validate, value, capacity-check, credit,
// pull, emit. The pull is the last fallible step; if it fails the credit is
// compensated and ErrTransferFailed is returned.
func (e *Engine) Deposit(ctx context.Context, req DepositRequest) (*Receipt, error) {
	const op = "deposit"
	start := time.Now()
	if !e.guard.enter() {
		return nil, e.reject(op, ErrReentrantCall)
	}
	defer e.guard.exit()

	assetID := req.Asset
	if assetID == "" {
		assetID = e.registry.NativeID()
	}

	if err := validateAmount(req.Amount); err != nil {
		return nil, e.reject(op, err)
	}
	asset, err := e.registry.Get(assetID)
	if err != nil {
		return nil, e.reject(op, err)
	}
	if req.Amount.Cmp(asset.PerTxLimit) > 0 {
		return nil, e.reject(op, fmt.Errorf("%w: asset %s", ErrOverPerTxLimit, assetID))
	}

	value, err := e.valuer.ToCanonical(ctx, assetID, req.Amount)
	if err != nil {
		return nil, e.reject(op, err)
	}

	total, err := e.totalCanonical(ctx)
	if err != nil {
		return nil, e.reject(op, err)
	}
	newTotal := new(big.Int).Add(total, value)
	if newTotal.Cmp(e.capacityLimit) > 0 {
		return nil, e.reject(op, fmt.Errorf("%w: value %s, total %s, limit %s",
			ErrOverGlobalCapacity, value, total, e.capacityLimit))
	}

	e.balances.Credit(assetID, req.Holder, req.Amount)

	// The native asset's funds accompany the call; tokens are pulled from
	// the rail as the final step.
	if assetID != e.registry.NativeID() {
		if err := e.mover.Pull(ctx, assetID, req.Holder, req.Amount); err != nil {
			if derr := e.balances.Debit(assetID, req.Holder, req.Amount); derr != nil {
				e.log.Error().Str("asset", assetID).Err(derr).
					Msg("compensating debit failed after pull failure")
			}
			if e.metrics != nil {
				e.metrics.TransferFailures.WithLabelValues("pull").Inc()
			}
			return nil, e.reject(op, fmt.Errorf("%w: pull %s: %w", ErrTransferFailed, assetID, err))
		}
	}

	holder := req.Holder
	env := e.emit(event.TypeDepositCompleted, assetID, &holder, event.DepositCompleted{
		AssetID:        assetID,
		Holder:         req.Holder,
		Amount:         req.Amount.String(),
		CanonicalValue: value.String(),
	}, assetID, req.Holder)

	e.postCheck(op)
	e.recordCompletion(op, start, newTotal)

	return &Receipt{
		Sequence:       env.Sequence,
		EventID:        env.EventID,
		AssetID:        assetID,
		Amount:         new(big.Int).Set(req.Amount),
		CanonicalValue: value,
		Timestamp:      env.Timestamp,
	}, nil
}

// Withdraw debits the holder and pushes the funds out. The canonical value
// is computed before the debit, so a bad price blocks withdrawals of the
// asset too. A failed push restores the debit before returning.
func (e *Engine) Withdraw(ctx context.Context, req WithdrawRequest) (*Receipt, error) {
	const op = "withdraw"
	start := time.Now()
	if !e.guard.enter() {
		return nil, e.reject(op, ErrReentrantCall)
	}
	defer e.guard.exit()

	assetID := req.Asset
	if assetID == "" {
		assetID = e.registry.NativeID()
	}

	if err := validateAmount(req.Amount); err != nil {
		return nil, e.reject(op, err)
	}
	asset, err := e.registry.Get(assetID)
	if err != nil {
		return nil, e.reject(op, err)
	}
	if req.Amount.Cmp(asset.PerTxLimit) > 0 {
		return nil, e.reject(op, fmt.Errorf("%w: asset %s", ErrOverPerTxLimit, assetID))
	}

	value, err := e.valuer.ToCanonical(ctx, assetID, req.Amount)
	if err != nil {
		return nil, e.reject(op, err)
	}

	if err := e.balances.Debit(assetID, req.Holder, req.Amount); err != nil {
		return nil, e.reject(op, err)
	}

	if err := e.mover.Push(ctx, assetID, req.Holder, req.Amount); err != nil {
		e.balances.Credit(assetID, req.Holder, req.Amount)
		if e.metrics != nil {
			e.metrics.TransferFailures.WithLabelValues("push").Inc()
		}
		return nil, e.reject(op, fmt.Errorf("%w: push %s: %w", ErrTransferFailed, assetID, err))
	}

	holder := req.Holder
	env := e.emit(event.TypeWithdrawCompleted, assetID, &holder, event.WithdrawCompleted{
		AssetID:        assetID,
		Holder:         req.Holder,
		Amount:         req.Amount.String(),
		CanonicalValue: value.String(),
	}, assetID, req.Holder)

	e.postCheck(op)
	e.recordCompletion(op, start, e.refreshTotal(ctx))

	return &Receipt{
		Sequence:       env.Sequence,
		EventID:        env.EventID,
		AssetID:        assetID,
		Amount:         new(big.Int).Set(req.Amount),
		CanonicalValue: value,
		Timestamp:      env.Timestamp,
	}, nil
}

// EmergencyWithdraw sweeps the entire custody-held quantity of an asset to
// destination, bypassing per-holder bookkeeping. Holder balances are left
// untouched; reconciliation after an emergency sweep is a manual process.
// Unregistered assets may be swept too, so stray custody is recoverable.
func (e *Engine) EmergencyWithdraw(ctx context.Context, caller uuid.UUID, assetID, destination string) (*big.Int, error) {
	const op = "emergency_withdraw"
	start := time.Now()
	if !e.guard.enter() {
		return nil, e.reject(op, ErrReentrantCall)
	}
	defer e.guard.exit()

	if err := e.requireRole(ctx, caller, auth.RoleEmergencyAdmin); err != nil {
		return nil, e.reject(op, err)
	}
	if destination == "" {
		return nil, e.reject(op, ErrInvalidDestination)
	}
	if assetID == "" {
		assetID = e.registry.NativeID()
	}

	moved, err := e.mover.Sweep(ctx, assetID, destination)
	if err != nil {
		if e.metrics != nil {
			e.metrics.TransferFailures.WithLabelValues("sweep").Inc()
		}
		return nil, e.reject(op, fmt.Errorf("%w: sweep %s: %w", ErrTransferFailed, assetID, err))
	}

	e.emit(event.TypeEmergencyWithdrawCompleted, assetID, nil, event.EmergencyWithdrawCompleted{
		AssetID:     assetID,
		Destination: destination,
		Amount:      moved.String(),
	}, "", uuid.Nil)

	e.log.Warn().Str("asset", assetID).Str("destination", destination).
		Str("amount", moved.String()).Msg("emergency withdrawal executed")
	e.recordCompletion(op, start, nil)
	return moved, nil
}

// RegisterAsset registers a token under asset-admin authority.
func (e *Engine) RegisterAsset(ctx context.Context, caller uuid.UUID, spec registry.Asset, sourceName string) (*registry.Asset, error) {
	const op = "register_asset"
	start := time.Now()
	if !e.guard.enter() {
		return nil, e.reject(op, ErrReentrantCall)
	}
	defer e.guard.exit()

	if err := e.requireRole(ctx, caller, auth.RoleAssetAdmin); err != nil {
		return nil, e.reject(op, err)
	}
	a, err := e.registry.Register(ctx, spec)
	if err != nil {
		return nil, e.reject(op, err)
	}

	e.emit(event.TypeAssetRegistered, a.ID, nil, event.AssetRegistered{
		AssetID:    a.ID,
		Decimals:   a.Decimals,
		PerTxLimit: a.PerTxLimit.String(),
		Source:     sourceName,
	}, "", uuid.Nil)

	if e.metrics != nil {
		e.metrics.RegisteredAssets.Set(float64(e.registry.Count()))
	}
	e.recordCompletion(op, start, nil)
	return a, nil
}

// UpdateLimit replaces an asset's per-transaction limit.
func (e *Engine) UpdateLimit(ctx context.Context, caller uuid.UUID, assetID string, limit *big.Int) error {
	const op = "update_limit"
	start := time.Now()
	if !e.guard.enter() {
		return e.reject(op, ErrReentrantCall)
	}
	defer e.guard.exit()

	if err := e.requireRole(ctx, caller, auth.RoleAssetAdmin); err != nil {
		return e.reject(op, err)
	}
	if assetID == "" {
		assetID = e.registry.NativeID()
	}
	if err := e.registry.UpdateLimit(assetID, limit); err != nil {
		return e.reject(op, err)
	}

	e.emit(event.TypeLimitUpdated, assetID, nil, event.LimitUpdated{
		AssetID:    assetID,
		PerTxLimit: limit.String(),
	}, "", uuid.Nil)
	e.recordCompletion(op, start, nil)
	return nil
}

// UpdatePriceSource replaces an asset's price source. sourceName is the
// human-readable handle recorded on the event.
func (e *Engine) UpdatePriceSource(ctx context.Context, caller uuid.UUID, assetID string, src oracle.PriceSource, sourceName string) error {
	const op = "update_price_source"
	start := time.Now()
	if !e.guard.enter() {
		return e.reject(op, ErrReentrantCall)
	}
	defer e.guard.exit()

	if err := e.requireRole(ctx, caller, auth.RoleAssetAdmin); err != nil {
		return e.reject(op, err)
	}
	if assetID == "" {
		assetID = e.registry.NativeID()
	}
	if err := e.registry.UpdateSource(assetID, src); err != nil {
		return e.reject(op, err)
	}

	e.emit(event.TypePriceSourceUpdated, assetID, nil, event.PriceSourceUpdated{
		AssetID: assetID,
		Source:  sourceName,
	}, "", uuid.Nil)
	e.recordCompletion(op, start, nil)
	return nil
}

// requireRole denies when the authorizer says no or cannot answer.
func (e *Engine) requireRole(ctx context.Context, caller uuid.UUID, role auth.Role) error {
	ok, err := e.auth.IsAuthorized(ctx, caller, role)
	if err != nil {
		return fmt.Errorf("%w: authorizer: %w", ErrUnauthorized, err)
	}
	if !ok {
		return fmt.Errorf("%w: caller %s lacks role %s", ErrUnauthorized, caller, role)
	}
	return nil
}

func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return ErrZeroAmount
	}
	if amount.Sign() < 0 || amount.Cmp(maxAmount) > 0 {
		return ErrInvalidAmount
	}
	return nil
}

// refreshTotal recomputes the canonical total for the gauges after an
// operation whose own pipeline did not sweep. Best effort: a failed sweep
// leaves the gauges stale instead of failing the completed operation.
func (e *Engine) refreshTotal(ctx context.Context) *big.Int {
	if e.metrics == nil {
		return nil
	}
	total, err := e.totalCanonical(ctx)
	if err != nil {
		e.log.Debug().Err(err).Msg("canonical total gauge refresh skipped")
		return nil
	}
	return total
}

// totalCanonical runs the bounded sweep and records its duration.
func (e *Engine) totalCanonical(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	total, err := e.valuer.TotalCanonical(ctx)
	if e.metrics != nil {
		e.metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}
	return total, err
}

func (e *Engine) emit(t event.Type, assetID string, holder *uuid.UUID, payload any, balAsset string, balHolder uuid.UUID) event.Envelope {
	e.seq++
	env := event.Envelope{
		Sequence:  e.seq,
		EventID:   uuid.New(),
		Type:      t,
		AssetID:   assetID,
		Holder:    holder,
		Timestamp: e.now(),
		Payload:   payload,
	}
	out := Output{Envelope: env}
	if balAsset != "" {
		out.HolderBalance = e.balances.BalanceOf(balAsset, balHolder)
		out.AssetAggregate = e.balances.AggregateOf(balAsset)
	}

	if e.persistChan != nil {
		// Blocking send: the engine stalls rather than lose an event.
		e.persistChan <- out
	}
	if e.publishChan != nil {
		select {
		case e.publishChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
			e.log.Warn().Int64("sequence", env.Sequence).Str("event_type", t.String()).
				Msg("publish channel full, event dropped")
		}
	}
	if e.metrics != nil {
		e.metrics.EventSequence.Set(float64(e.seq))
	}
	return env
}

func (e *Engine) postCheck(op string) {
	if err := e.balances.CheckAggregates(); err != nil {
		e.log.Error().Str("op", op).Err(err).Msg("aggregate invariant violated")
		if e.metrics != nil {
			e.metrics.InvariantViolations.Inc()
		}
	}
}

func (e *Engine) reject(op string, err error) error {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, reasonLabel(err)).Inc()
	}
	return err
}

func (e *Engine) recordCompletion(op string, start time.Time, newTotal *big.Int) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpsCompleted.WithLabelValues(op).Inc()
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if newTotal != nil {
		e.metrics.CanonicalTotal.Set(bigToFloat(newTotal))
		remaining := new(big.Int).Sub(e.capacityLimit, newTotal)
		if remaining.Sign() < 0 {
			remaining.SetInt64(0)
		}
		e.metrics.AvailableCapacity.Set(bigToFloat(remaining))
	}
}

// bigToFloat is lossy above 2^53; gauges are trend indicators, not ledger
// values.
func bigToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrOverPerTxLimit):
		return "over_per_tx_limit"
	case errors.Is(err, ErrOverGlobalCapacity):
		return "over_global_capacity"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrInvalidDestination):
		return "invalid_destination"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrReentrantCall):
		return "reentrant"
	case errors.Is(err, registry.ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, registry.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, registry.ErrInvalidAsset):
		return "invalid_asset"
	case errors.Is(err, registry.ErrInvalidLimit):
		return "invalid_limit"
	case errors.Is(err, registry.ErrInvalidPriceSource):
		return "invalid_price_source"
	case errors.Is(err, registry.ErrTooManyAssets):
		return "too_many_assets"
	case errors.Is(err, balance.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, valuation.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, valuation.ErrPriceUnavailable):
		return "price_unavailable"
	default:
		return "other"
	}
}
