// Package escrow derives the escrow record of a job and its platform fee.
package escrow

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"trusthub.org/internal/apperr"
	"trusthub.org/internal/domain"
	"trusthub.org/internal/obs"
	"trusthub.org/internal/store"
)

var (
	feeRates = map[domain.ServiceTier]decimal.Decimal{
		domain.TierDirectTrust:    decimal.RequireFromString("0.02"),
		domain.TierGuidedTrust:    decimal.RequireFromString("0.07"),
		domain.TierDelegatedTrust: decimal.RequireFromString("0.15"),
	}
	defaultFeeRate = decimal.RequireFromString("0.05")
)

// FeeRate returns the platform fee rate of tier; unknown tiers pay the default.
func FeeRate(tier domain.ServiceTier) decimal.Decimal {
	if r, ok := feeRates[tier]; ok {
		return r
	}
	return defaultFeeRate
}

// Fee is round(budget * rate, 2).
func ComputeFee(budget domain.Amount, tier domain.ServiceTier) domain.Amount {
	return domain.NewAmount(budget.Mul(FeeRate(tier)))
}

type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Create opens the escrow of a job. A second call for the same job fails
// Conflict; the storage uniqueness constraint arbitrates concurrent calls.
func (s *Service) Create(ctx context.Context, jobID string) (domain.Escrow, error) {
	if strings.TrimSpace(jobID) == "" {
		return domain.Escrow{}, apperr.Validation("job_id is required")
	}
	var e domain.Escrow
	var tier domain.ServiceTier
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		j, err := tx.JobByID(ctx, jobID, false)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("job not found")
		}
		if err != nil {
			return err
		}
		tier = j.ServiceType
		e = domain.Escrow{
			JobID:       j.ID,
			TotalAmount: j.Budget,
			PlatformFee: ComputeFee(j.Budget, j.ServiceType),
			Status:      domain.EscrowCreated,
		}
		if err := tx.CreateEscrow(ctx, &e); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("escrow already exists for this job")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Escrow{}, err
	}
	obs.RecordEscrowCreated(string(tier))
	obs.Info("escrow_created", map[string]any{
		"job_id":       e.JobID,
		"escrow_id":    e.ID,
		"total_amount": e.TotalAmount.String(),
		"platform_fee": e.PlatformFee.String(),
	})
	return e, nil
}

// ForJob returns the escrow of a job.
func (s *Service) ForJob(ctx context.Context, jobID string) (domain.Escrow, error) {
	var e domain.Escrow
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		e, err = tx.EscrowByJob(ctx, jobID, false)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("escrow not found")
		}
		return err
	})
	return e, err
}
