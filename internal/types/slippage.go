// internal/types/slippage.go
package types

// SlippageTiers holds the per-urgency slippage policy in basis points.
// Emergency exits accept a much worse fill than a routine take-profit sell.
type SlippageTiers struct {
	Buy       uint64 `mapstructure:"buy_bps"`
	Sell      uint64 `mapstructure:"sell_bps"`
	Emergency uint64 `mapstructure:"emergency_bps"`
}

// DefaultSlippageTiers mirrors the production policy: 5% on entry, 15% on a
// normal exit, 25% when crashing out.
func DefaultSlippageTiers() SlippageTiers {
	return SlippageTiers{
		Buy:       500,
		Sell:      1500,
		Emergency: 2500,
	}
}

// SellBps returns the sell-leg slippage for the given urgency.
func (t SlippageTiers) SellBps(u Urgency) uint64 {
	switch u {
	case UrgencyEmergency:
		return t.Emergency
	case UrgencyElevated:
		if t.Emergency > t.Sell {
			return (t.Sell + t.Emergency) / 2
		}
		return t.Sell
	default:
		return t.Sell
	}
}
