package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"silverline-hq/portcullis/pkg/rules"
)

// Config contains engine-level settings.
type Config struct {
	// RemindAt lists remaining-count values at which the verdict carries
	// a reminder flag.
	RemindAt []int
}

// Engine is the admission decision pipeline: rule-priority resolution,
// abuse check, then atomic ledger admission. Exemption is resolved first
// and is terminal: an exempt caller is admitted before any abuse or quota
// accounting happens.
//
// When the shared store is unavailable the engine fails closed: the call
// is not admitted and the error is surfaced to the host, rather than
// silently granting unlimited access during an outage.
type Engine struct {
	resolver *Resolver
	ledger   *Ledger
	detector *Detector
	metrics  *Metrics
	remindAt map[int64]struct{}
	logger   *slog.Logger
}

// New creates an engine. metrics may be nil.
func New(resolver *Resolver, ledger *Ledger, detector *Detector, cfg Config, metrics *Metrics) *Engine {
	remindAt := make(map[int64]struct{}, len(cfg.RemindAt))
	for _, threshold := range cfg.RemindAt {
		if threshold > 0 {
			remindAt[int64(threshold)] = struct{}{}
		}
	}
	return &Engine{
		resolver: resolver,
		ledger:   ledger,
		detector: detector,
		metrics:  metrics,
		remindAt: remindAt,
		logger:   slog.Default().With("component", "engine"),
	}
}

// Detector returns the engine's abuse detector, for administrative
// operations.
func (e *Engine) Detector() *Detector { return e.detector }

// Ledger returns the engine's ledger, for administrative operations.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// Evaluate decides whether a request is admitted. The host invokes this
// only for messages it has already classified as quota-relevant.
//
// A non-nil error means the decision could not be made (store outage);
// the accompanying verdict is always a denial.
func (e *Engine) Evaluate(ctx context.Context, req Request) (Verdict, error) {
	start := time.Now()
	defer func() {
		e.metrics.RecordDuration(time.Since(start).Seconds())
	}()

	if req.UserID == "" {
		return Verdict{}, fmt.Errorf("%w: empty user id", rules.ErrInvalidArgument)
	}
	at := req.At
	if at.IsZero() {
		at = time.Now()
	}

	res := e.resolver.Resolve(ctx, req, at)

	// Exempt callers bypass the detector entirely: their requests are
	// never logged to an abuse window and an existing block does not
	// apply to them.
	if res.Tier == TierExempt {
		e.metrics.RecordEvaluation(ReasonExempt)
		return Verdict{
			Allowed:   true,
			Reason:    ReasonExempt,
			Tier:      TierExempt,
			Limit:     -1,
			Remaining: -1,
		}, nil
	}

	state, blocked, err := e.detector.Check(ctx, req.UserID, at)
	if err != nil {
		e.metrics.RecordStoreFailure()
		e.logger.Error("abuse check failed, failing closed", "user_id", req.UserID, "error", err)
		return Verdict{Allowed: false}, err
	}
	if blocked {
		e.metrics.RecordAbuseRejection()
		e.metrics.RecordEvaluation(ReasonAbuseBlocked)
		until := state.BlockedUntil
		return Verdict{
			Allowed:      false,
			Reason:       ReasonAbuseBlocked,
			BlockedUntil: &until,
		}, nil
	}

	result, err := e.ledger.Admit(ctx, res, req, at)
	if err != nil {
		e.metrics.RecordStoreFailure()
		e.logger.Error("ledger admission failed, failing closed",
			"user_id", req.UserID, "scope_key", res.ScopeKey, "error", err)
		return Verdict{Allowed: false}, err
	}
	e.metrics.RecordAdmission(res.Tier, result.Allowed)

	verdict := Verdict{
		Allowed:  result.Allowed,
		ScopeKey: res.ScopeKey,
		Tier:     res.Tier,
		Used:     result.Used,
		Limit:    res.Limit,
	}
	if result.Allowed {
		verdict.Reason = ReasonQuotaOK
		verdict.Remaining = res.Limit - result.Used
		if verdict.Remaining < 0 {
			verdict.Remaining = 0
		}
		_, verdict.Remind = e.remindAt[verdict.Remaining]
	} else {
		verdict.Reason = ReasonQuotaExceeded
		verdict.Remaining = 0
	}

	e.metrics.RecordEvaluation(verdict.Reason)
	return verdict, nil
}
