// Package jobs implements the job lifecycle: creation, the status state
// machine, listing and milestones.
package jobs

import (
	"context"
	"errors"
	"strings"
	"time"

	"trusthub.org/internal/apperr"
	"trusthub.org/internal/domain"
	"trusthub.org/internal/obs"
	"trusthub.org/internal/store"
	"trusthub.org/internal/validate"
)

type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// CreateInput is the payload of Create. Deadline accepts RFC 3339 or a plain date.
type CreateInput struct {
	Title        string         `json:"title" validate:"required"`
	Description  string         `json:"description" validate:"required"`
	Deliverables string         `json:"deliverables"`
	ServiceType  string         `json:"service_type" validate:"required"`
	Budget       *domain.Amount `json:"budget" validate:"required"`
	Deadline     string         `json:"deadline"`
	ClientID     string         `json:"client_id" validate:"required"`
	ExpertID     string         `json:"expert_id"`
}

// Detail is a job with its escrow and milestones joined in.
type Detail struct {
	domain.Job
	Escrow     *domain.Escrow     `json:"escrow,omitempty"`
	Milestones []domain.Milestone `json:"milestones,omitempty"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Job, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := validate.Struct(in); err != nil {
		return domain.Job{}, err
	}
	tier, err := domain.ParseServiceTier(in.ServiceType)
	if err != nil {
		return domain.Job{}, apperr.Validation("invalid service type")
	}
	budget := domain.NewAmount(in.Budget.Decimal)
	if !budget.IsPositive() {
		return domain.Job{}, apperr.Validation("budget must be greater than zero")
	}
	if !budget.Storable() {
		return domain.Job{}, apperr.Validation("budget must not exceed %s", domain.MaxAmount)
	}
	deadline, err := parseDeadline(in.Deadline)
	if err != nil {
		return domain.Job{}, err
	}

	j := domain.Job{
		Title:        in.Title,
		Description:  in.Description,
		Deliverables: in.Deliverables,
		ServiceType:  tier,
		Budget:       budget,
		Deadline:     deadline,
		ClientID:     in.ClientID,
		ExpertID:     in.ExpertID,
		Status:       domain.JobDraft,
	}
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := requireRole(ctx, tx, in.ClientID, domain.RoleCompany, "client_id"); err != nil {
			return err
		}
		if in.ExpertID != "" {
			if err := requireRole(ctx, tx, in.ExpertID, domain.RoleExpert, "expert_id"); err != nil {
				return err
			}
		}
		return tx.CreateJob(ctx, &j)
	})
	if err != nil {
		return domain.Job{}, err
	}
	obs.Info("job_created", map[string]any{"job_id": j.ID, "client_id": j.ClientID, "service_type": string(j.ServiceType)})
	return j, nil
}

func requireRole(ctx context.Context, tx store.Tx, userID string, role domain.Role, field string) error {
	u, err := tx.UserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Validation("%s does not reference an existing user", field)
	}
	if err != nil {
		return err
	}
	if u.Role != role {
		return apperr.Validation("%s must reference a user with role %s", field, role)
	}
	return nil
}

func parseDeadline(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperr.Validation("deadline must be an ISO 8601 date or timestamp")
}

func (s *Service) Get(ctx context.Context, id string) (Detail, error) {
	var d Detail
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		j, err := tx.JobByID(ctx, id, false)
		if err != nil {
			return notFound(err)
		}
		d.Job = j
		e, err := tx.EscrowByJob(ctx, id, false)
		switch {
		case err == nil:
			d.Escrow = &e
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		d.Milestones, err = tx.MilestonesByJob(ctx, id)
		return err
	})
	return d, err
}

// List returns admin-approved jobs, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Job, error) {
	return s.list(ctx, store.JobFilter{ApprovedOnly: true})
}

// ListPending returns jobs awaiting admin approval, newest first.
func (s *Service) ListPending(ctx context.Context) ([]domain.Job, error) {
	return s.list(ctx, store.JobFilter{Status: domain.JobPendingApproval})
}

func (s *Service) list(ctx context.Context, f store.JobFilter) ([]domain.Job, error) {
	var jobs []domain.Job
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		jobs, err = tx.ListJobs(ctx, f)
		return err
	})
	if jobs == nil {
		jobs = []domain.Job{}
	}
	return jobs, err
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("job not found")
	}
	return err
}
