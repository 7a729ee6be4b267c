package jobs

import (
	"context"
	"time"

	"trusthub.org/internal/apperr"
	"trusthub.org/internal/domain"
	"trusthub.org/internal/obs"
	"trusthub.org/internal/store"
)

// Move checks the transition table and persists the new status of j,
// stamped with at. It must run inside the caller's transaction with j locked.
func Move(ctx context.Context, tx store.Tx, j *domain.Job, to domain.JobStatus, verb string, at time.Time) error {
	if !j.Status.CanTransitionTo(to) {
		return apperr.InvalidState("job is %s, cannot %s", j.Status, verb)
	}
	j.Status = to
	j.UpdatedAt = at
	return tx.UpdateJob(ctx, *j)
}

// Observe records a committed transition.
func Observe(jobID string, from, to domain.JobStatus) {
	obs.RecordJobTransition(string(from), string(to))
	obs.Info("job_transition", map[string]any{"job_id": jobID, "from": string(from), "to": string(to)})
}

// guard decides whether the caller may act on j; nil admits anyone.
type guard func(j domain.Job) error

// clientOrAdmin admits the job's client and admins.
func clientOrAdmin(actor domain.User, verb string) guard {
	return func(j domain.Job) error {
		if actor.Role == domain.RoleAdmin || (actor.ID != "" && actor.ID == j.ClientID) {
			return nil
		}
		return apperr.Forbidden("only the job's client can %s it", verb)
	}
}

// assignedExpert admits only the expert assigned to the job.
func assignedExpert(actor domain.User, verb string) guard {
	return func(j domain.Job) error {
		if j.ExpertID != "" && actor.ID == j.ExpertID {
			return nil
		}
		return apperr.Forbidden("only the assigned expert can %s the job", verb)
	}
}

// transition loads and locks the job, checks allow, lets mutate adjust it,
// then moves it to `to`. Ownership is checked before the status.
func (s *Service) transition(ctx context.Context, id string, to domain.JobStatus, verb string, allow guard, mutate func(tx store.Tx, j *domain.Job) error) (domain.Job, error) {
	var (
		j    domain.Job
		from domain.JobStatus
	)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		j, err = tx.JobByID(ctx, id, true)
		if err != nil {
			return notFound(err)
		}
		if allow != nil {
			if err := allow(j); err != nil {
				return err
			}
		}
		from = j.Status
		if !from.CanTransitionTo(to) {
			return apperr.InvalidState("job is %s, cannot %s", from, verb)
		}
		if mutate != nil {
			if err := mutate(tx, &j); err != nil {
				return err
			}
		}
		return Move(ctx, tx, &j, to, verb, s.now())
	})
	if err != nil {
		return domain.Job{}, err
	}
	Observe(j.ID, from, to)
	return j, nil
}

// Submit sends a draft for admin approval.
func (s *Service) Submit(ctx context.Context, id string) (domain.Job, error) {
	return s.transition(ctx, id, domain.JobPendingApproval, "submit", nil, nil)
}

// Approve is admin-only; approved_by_admin is set here and nowhere else.
func (s *Service) Approve(ctx context.Context, id string) (domain.Job, error) {
	return s.transition(ctx, id, domain.JobActive, "approve", nil, func(_ store.Tx, j *domain.Job) error {
		j.ApprovedByAdmin = true
		return nil
	})
}

// Start begins work on behalf of the client. The job needs an expert,
// either already assigned or given here.
func (s *Service) Start(ctx context.Context, actor domain.User, id, expertID string) (domain.Job, error) {
	return s.transition(ctx, id, domain.JobInProgress, "start", clientOrAdmin(actor, "start"), func(tx store.Tx, j *domain.Job) error {
		if expertID == "" {
			if j.ExpertID == "" {
				return apperr.Validation("expert_id is required to start a job")
			}
			return nil
		}
		if err := requireRole(ctx, tx, expertID, domain.RoleExpert, "expert_id"); err != nil {
			return err
		}
		j.ExpertID = expertID
		return nil
	})
}

func (s *Service) Deliver(ctx context.Context, actor domain.User, id string) (domain.Job, error) {
	return s.transition(ctx, id, domain.JobDelivered, "deliver", assignedExpert(actor, "deliver"), nil)
}

func (s *Service) Complete(ctx context.Context, actor domain.User, id string) (domain.Job, error) {
	return s.transition(ctx, id, domain.JobCompleted, "complete", clientOrAdmin(actor, "complete"), nil)
}

// Close is admin-only.
func (s *Service) Close(ctx context.Context, id string) (domain.Job, error) {
	return s.transition(ctx, id, domain.JobClosed, "close", nil, nil)
}
