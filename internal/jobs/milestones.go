package jobs

import (
	"context"
	"strings"

	"trusthub.org/internal/apperr"
	"trusthub.org/internal/domain"
	"trusthub.org/internal/obs"
	"trusthub.org/internal/store"
	"trusthub.org/internal/validate"
)

type MilestoneInput struct {
	Title       string         `json:"title" validate:"required"`
	Description string         `json:"description"`
	Amount      *domain.Amount `json:"amount" validate:"required"`
	Deadline    string         `json:"deadline"`
}

// AddMilestone appends a milestone for the job's client or an admin. The sum
// of milestone amounts may not exceed the job budget.
func (s *Service) AddMilestone(ctx context.Context, actor domain.User, jobID string, in MilestoneInput) (domain.Milestone, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		return domain.Milestone{}, err
	}
	amount := domain.NewAmount(in.Amount.Decimal)
	if !amount.IsPositive() {
		return domain.Milestone{}, apperr.Validation("amount must be greater than zero")
	}
	if !amount.Storable() {
		return domain.Milestone{}, apperr.Validation("amount must not exceed %s", domain.MaxAmount)
	}
	deadline, err := parseDeadline(in.Deadline)
	if err != nil {
		return domain.Milestone{}, err
	}

	m := domain.Milestone{
		JobID:       jobID,
		Title:       in.Title,
		Description: in.Description,
		Amount:      amount,
		Deadline:    deadline,
		Status:      domain.MilestonePending,
	}
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		j, err := tx.JobByID(ctx, jobID, true)
		if err != nil {
			return notFound(err)
		}
		if err := clientOrAdmin(actor, "plan")(j); err != nil {
			return err
		}
		existing, err := tx.MilestonesByJob(ctx, jobID)
		if err != nil {
			return err
		}
		total := amount.Decimal
		for _, e := range existing {
			total = total.Add(e.Amount.Decimal)
		}
		if total.GreaterThan(j.Budget.Decimal) {
			return apperr.Validation("milestone total %s exceeds job budget %s",
				total.StringFixed(2), j.Budget)
		}
		return tx.CreateMilestone(ctx, &m)
	})
	if err != nil {
		return domain.Milestone{}, err
	}
	obs.Info("milestone_added", map[string]any{"job_id": jobID, "milestone_id": m.ID, "amount": m.Amount.String()})
	return m, nil
}
