package domain

import "time"

// EscrowStatus is tracked independently of, but correlated with, the job status.
type EscrowStatus string

const (
	EscrowCreated  EscrowStatus = "created"
	EscrowFunded   EscrowStatus = "funded"
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
	EscrowRefunded EscrowStatus = "refunded"
	EscrowDisputed EscrowStatus = "disputed"
)

// Terminal reports whether funds have left escrow in either direction.
func (s EscrowStatus) Terminal() bool {
	return s == EscrowReleased || s == EscrowRefunded
}

// Escrow is the ledger record of a job's held funds. At most one per job.
type Escrow struct {
	ID          string       `json:"id"`
	JobID       string       `json:"job_id"`
	TotalAmount Amount       `json:"total_amount"`
	PlatformFee Amount       `json:"platform_fee"`
	Status      EscrowStatus `json:"status"`
	FundedAt    *time.Time   `json:"funded_at,omitempty"`
	ReleasedAt  *time.Time   `json:"released_at,omitempty"`
	RefundedAt  *time.Time   `json:"refunded_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
