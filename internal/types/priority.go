package types

// PriorityProfile selects the compute unit price hint passed to the
// aggregator when it builds the transaction.
type PriorityProfile struct {
	Normal    uint64 `mapstructure:"normal"`
	Emergency uint64 `mapstructure:"emergency"`
}

// DefaultPriorityProfile uses 50k micro-lamports, the fee the aggregator
// recommends for landing during congestion.
func DefaultPriorityProfile() PriorityProfile {
	return PriorityProfile{
		Normal:    50_000,
		Emergency: 100_000,
	}
}

// Fee returns the compute unit price for the given urgency.
func (p PriorityProfile) Fee(u Urgency) uint64 {
	if u == UrgencyEmergency {
		return p.Emergency
	}
	return p.Normal
}
