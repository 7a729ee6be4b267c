// Package disputes opens disputes against jobs, routes them to arbitrators
// and settles the job's escrow on resolution.
package disputes

import (
	"context"
	"errors"
	"strings"
	"time"

	"trusthub.org/internal/apperr"
	"trusthub.org/internal/domain"
	"trusthub.org/internal/jobs"
	"trusthub.org/internal/obs"
	"trusthub.org/internal/store"
)

type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{store: st, now: func() time.Time { return time.Now().UTC() }}
}

type OpenInput struct {
	JobID    string `json:"job_id"`
	Reason   string `json:"reason"`
	Evidence string `json:"evidence"`
}

// Open files a dispute by openedBy. A non-terminal escrow of the job moves to
// disputed, and so does a job that is in progress or delivered.
func (s *Service) Open(ctx context.Context, openedBy string, in OpenInput) (domain.Dispute, error) {
	in.JobID = strings.TrimSpace(in.JobID)
	in.Reason = strings.TrimSpace(in.Reason)
	if in.JobID == "" {
		return domain.Dispute{}, apperr.Validation("job_id is required")
	}
	if in.Reason == "" {
		return domain.Dispute{}, apperr.Validation("reason is required")
	}

	d := domain.Dispute{
		JobID:    in.JobID,
		OpenedBy: openedBy,
		Status:   domain.DisputeOpen,
		Reason:   in.Reason,
		Evidence: in.Evidence,
	}
	var moved *domain.JobStatus
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		j, err := tx.JobByID(ctx, in.JobID, true)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("job not found")
		}
		if err != nil {
			return err
		}
		if err := tx.CreateDispute(ctx, &d); err != nil {
			return err
		}
		if from := j.Status; from.CanTransitionTo(domain.JobDisputed) {
			if err := jobs.Move(ctx, tx, &j, domain.JobDisputed, "dispute", s.now()); err != nil {
				return err
			}
			moved = &from
		}
		e, err := tx.EscrowByJob(ctx, in.JobID, true)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if e.Status.Terminal() || e.Status == domain.EscrowDisputed {
			return nil
		}
		e.Status = domain.EscrowDisputed
		return tx.UpdateEscrow(ctx, e)
	})
	if err != nil {
		return domain.Dispute{}, err
	}
	if moved != nil {
		jobs.Observe(d.JobID, *moved, domain.JobDisputed)
	}
	obs.Info("dispute_opened", map[string]any{"dispute_id": d.ID, "job_id": d.JobID, "opened_by": openedBy})
	return d, nil
}

// List returns disputes, optionally filtered by a status from the closed enum.
func (s *Service) List(ctx context.Context, status string) ([]domain.Dispute, error) {
	var f store.DisputeFilter
	if status != "" {
		st, err := domain.ParseDisputeStatus(status)
		if err != nil {
			return nil, apperr.Validation("invalid dispute status: %s", status)
		}
		f.Status = st
	}
	var out []domain.Dispute
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListDisputes(ctx, f)
		return err
	})
	if out == nil {
		out = []domain.Dispute{}
	}
	return out, err
}

func (s *Service) Get(ctx context.Context, id string) (domain.Dispute, error) {
	var d domain.Dispute
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		d, err = tx.DisputeByID(ctx, id, false)
		return notFound(err)
	})
	return d, err
}

// Assign routes an open or in-review dispute to an arbitrator.
func (s *Service) Assign(ctx context.Context, id, arbitratorID string) (domain.Dispute, error) {
	arbitratorID = strings.TrimSpace(arbitratorID)
	var d domain.Dispute
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		d, err = tx.DisputeByID(ctx, id, true)
		if err != nil {
			return notFound(err)
		}
		if arbitratorID == "" {
			return apperr.Validation("arbitrator_id is required")
		}
		u, err := tx.UserByID(ctx, arbitratorID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && u.Role != domain.RoleArbitrator) {
			return apperr.Validation("invalid arbitrator")
		}
		if err != nil {
			return err
		}
		if d.Status.Terminal() {
			return apperr.InvalidState("dispute is %s, cannot assign", d.Status)
		}
		d.AssignedTo = arbitratorID
		d.Status = domain.DisputeInReview
		return tx.UpdateDispute(ctx, d)
	})
	if err != nil {
		return domain.Dispute{}, err
	}
	obs.Info("dispute_assigned", map[string]any{"dispute_id": d.ID, "arbitrator_id": arbitratorID})
	return d, nil
}

type ResolveInput struct {
	Resolution string `json:"resolution"`
	Winner     string `json:"winner"`
}

// Resolve closes the dispute in favour of one party. The job's escrow, looked
// up by job id, is refunded for the client or released to the expert.
func (s *Service) Resolve(ctx context.Context, id string, in ResolveInput) (domain.Dispute, error) {
	in.Resolution = strings.TrimSpace(in.Resolution)
	if in.Resolution == "" || strings.TrimSpace(in.Winner) == "" {
		return domain.Dispute{}, apperr.Validation("resolution and winner are required")
	}
	winner, err := domain.ParseWinner(in.Winner)
	if err != nil {
		return domain.Dispute{}, apperr.Validation("winner must be client or expert")
	}

	var d domain.Dispute
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		d, err = tx.DisputeByID(ctx, id, true)
		if err != nil {
			return notFound(err)
		}
		if d.Status.Terminal() {
			return apperr.InvalidState("dispute is already %s", d.Status)
		}
		now := s.now()
		d.Status = domain.DisputeResolved
		d.Resolution = in.Resolution
		d.Decision = winner
		d.ResolvedAt = &now
		if err := tx.UpdateDispute(ctx, d); err != nil {
			return err
		}

		e, err := tx.EscrowByJob(ctx, d.JobID, true)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		switch winner {
		case domain.WinnerClient:
			e.Status = domain.EscrowRefunded
			e.RefundedAt = &now
		case domain.WinnerExpert:
			e.Status = domain.EscrowReleased
			e.ReleasedAt = &now
		}
		return tx.UpdateEscrow(ctx, e)
	})
	if err != nil {
		return domain.Dispute{}, err
	}
	obs.RecordDisputeResolved(string(winner))
	obs.Info("dispute_resolved", map[string]any{"dispute_id": d.ID, "job_id": d.JobID, "winner": string(winner)})
	return d, nil
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("dispute not found")
	}
	return err
}
