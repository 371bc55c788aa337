// internal/risk/scorer.go
package risk

import "fmt"

// Audit holds the issuer-safety facts about a token. Known=false means the
// audit source returned nothing; no deductions or bonuses are applied then.
type Audit struct {
	Known                   bool
	MintAuthorityDisabled   bool
	FreezeAuthorityDisabled bool
	TopHoldersPct           float64
	SnipersPct              float64
}

// MarketSignals holds the market-activity facts. Known=false means the
// market source returned nothing.
type MarketSignals struct {
	Known              bool
	Honeypot           bool
	LiquidityToMcapPct float64
	TxCount24h         int
}

// Policy pins the scoring baseline and floors. Two baselines were observed
// in production (permissive 100 and neutral 50); this engine runs the
// neutral one, which also awards points back for positive signals.
type Policy struct {
	Baseline   int
	MinTxCount int
}

// DefaultPolicy returns the neutral-baseline scoring policy.
func DefaultPolicy() Policy {
	return Policy{Baseline: 50, MinTxCount: 100}
}

// Assessment is the derived safety verdict. It is recomputed per evaluation
// and never persisted.
type Assessment struct {
	Score    int
	Warnings []string
}

// Bucket labels for display. Purchase decisions gate on the raw score plus
// the honeypot veto, never on the bucket alone.
type Bucket string

const (
	BucketLow    Bucket = "LOW RISK"
	BucketMedium Bucket = "MEDIUM RISK"
	BucketHigh   Bucket = "HIGH RISK"
)

// Bucket maps the raw score onto a display label.
func (a Assessment) Bucket() Bucket {
	switch {
	case a.Score >= 70:
		return BucketLow
	case a.Score >= 40:
		return BucketMedium
	default:
		return BucketHigh
	}
}

// Honeypot reports whether the honeypot veto fired. A honeypot forces the
// score to 0, so the veto is recoverable from the assessment itself.
func (a Assessment) Honeypot() bool {
	for _, w := range a.Warnings {
		if w == warnHoneypot {
			return true
		}
	}
	return false
}

const warnHoneypot = "Possible HONEYPOT"

// Score turns audit and market facts into a bounded safety score with an
// ordered warning list. Deterministic and side-effect free; every deduction
// is applied independently, with no early exit.
func Score(audit Audit, signals MarketSignals, policy Policy) Assessment {
	score := policy.Baseline
	var warnings []string

	if audit.Known {
		if audit.MintAuthorityDisabled {
			score += 20
		} else {
			score -= 15
			warnings = append(warnings, "Mint authority NOT disabled")
		}

		if audit.FreezeAuthorityDisabled {
			score += 15
		} else {
			score -= 10
			warnings = append(warnings, "Freeze authority NOT disabled")
		}

		switch {
		case audit.TopHoldersPct > 50:
			score -= 20
			warnings = append(warnings, fmt.Sprintf("Top holders own %.1f%%", audit.TopHoldersPct))
		case audit.TopHoldersPct > 30:
			score -= 10
		default:
			score += 10
		}

		if audit.SnipersPct > 30 {
			score -= 15
			warnings = append(warnings, fmt.Sprintf("Snipers hold %.1f%%", audit.SnipersPct))
		}
	}

	honeypot := false
	if signals.Known {
		if signals.Honeypot {
			honeypot = true
			score -= 30
			warnings = append(warnings, warnHoneypot)
		} else {
			score += 10
		}

		if signals.LiquidityToMcapPct < 5 {
			score -= 15
			warnings = append(warnings, fmt.Sprintf("Low liquidity (%.1f%%)", signals.LiquidityToMcapPct))
		}

		if signals.TxCount24h < policy.MinTxCount {
			score -= 15
			warnings = append(warnings, "LOW ACTIVITY")
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	// An unsellable token is worthless at any score.
	if honeypot {
		score = 0
	}

	return Assessment{Score: score, Warnings: warnings}
}
