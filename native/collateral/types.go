package collateral

// Lock cross-references a mixer commitment with the loan it backs. Active is
// cleared when the loan is repaid and the deposit unlocked; the record itself
// is retained for history.
type Lock struct {
	Commitment [32]byte `json:"commitment"`
	LoanID     uint64   `json:"loanId"`
	Active     bool     `json:"active"`
}

// Clone returns a copy of the lock record.
func (l *Lock) Clone() *Lock {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// RiskParameters groups the safety limits governing borrowing against
// mixer deposits. MaxLTVBps is the loan-to-value ceiling in basis points;
// the demo deployment runs a flat 50%.
type RiskParameters struct {
	MaxLTVBps uint64
}

// DefaultRiskParameters returns the flat 50% LTV policy the deployment
// scripts hard-code.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{MaxLTVBps: 5_000}
}
