// Package errs classifies the error kinds the core can surface as a
// small sentinel-error family, so callers branch on errors.Is instead of
// matching formatted strings.
package errs

import "errors"

// Kind classifies a failure so callers can switch on classification rather
// than parse an error string, mirroring the error-kind taxonomy of a
// production multi-chain pipeline.
type Kind uint8

const (
	KindTransientNetwork Kind = iota
	KindStaleSnapshot
	KindOpportunityExpired
	KindSimulationRevert
	KindGasCeilingExceeded
	KindSubmissionFailure
	KindPostSubmitRevert
	KindRealizedLossWithinLimits
	KindLimitBreach
	KindInvariantViolation
)

func (k Kind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient_network"
	case KindStaleSnapshot:
		return "stale_snapshot"
	case KindOpportunityExpired:
		return "opportunity_expired"
	case KindSimulationRevert:
		return "simulation_revert"
	case KindGasCeilingExceeded:
		return "gas_ceiling_exceeded"
	case KindSubmissionFailure:
		return "submission_failure"
	case KindPostSubmitRevert:
		return "post_submit_revert"
	case KindRealizedLossWithinLimits:
		return "realized_loss_within_limits"
	case KindLimitBreach:
		return "limit_breach"
	case KindInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per Kind, so callers can errors.Is against a
// stable value instead of comparing strings. Layers wrap these with %w
// and their own context.
var (
	ErrTransientNetwork         = errors.New("transient network error")
	ErrStaleSnapshot            = errors.New("stale snapshot discarded")
	ErrOpportunityExpired       = errors.New("opportunity expired")
	ErrSimulationRevert         = errors.New("simulation reverted")
	ErrGasCeilingExceeded       = errors.New("gas price ceiling exceeded")
	ErrSubmissionFailure        = errors.New("transaction submission failed")
	ErrNonceConflict            = errors.New("nonce conflict")
	ErrPostSubmitRevert         = errors.New("transaction reverted after submission")
	ErrRealizedLossWithinLimits = errors.New("realized loss recorded within limits")
	ErrLimitBreach              = errors.New("loss limit breached, chain paused")
	ErrInvariantViolation       = errors.New("invariant violation")
	ErrChainPaused              = errors.New("chain is paused")
)

// kindBySentinel lets Classify recover a Kind from one of the sentinels
// above, including when it's buried under fmt.Errorf("...: %w", sentinel)
// wrapping.
var kindBySentinel = map[error]Kind{
	ErrTransientNetwork:         KindTransientNetwork,
	ErrStaleSnapshot:            KindStaleSnapshot,
	ErrOpportunityExpired:       KindOpportunityExpired,
	ErrSimulationRevert:         KindSimulationRevert,
	ErrGasCeilingExceeded:       KindGasCeilingExceeded,
	ErrSubmissionFailure:        KindSubmissionFailure,
	ErrNonceConflict:            KindSubmissionFailure,
	ErrPostSubmitRevert:         KindPostSubmitRevert,
	ErrRealizedLossWithinLimits: KindRealizedLossWithinLimits,
	ErrLimitBreach:              KindLimitBreach,
	ErrInvariantViolation:       KindInvariantViolation,
}

// Classify returns the Kind of err by walking its wrap chain against the
// known sentinels. Returns (0, false) if err doesn't match any of them.
func Classify(err error) (Kind, bool) {
	for sentinel, kind := range kindBySentinel {
		if errors.Is(err, sentinel) {
			return kind, true
		}
	}
	return 0, false
}
