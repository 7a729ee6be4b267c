// Package store declares the transactional persistence contract used by services.
package store

import (
	"context"
	"errors"
	"time"

	"trusthub.org/internal/domain"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("store: duplicate")
)

// Store hands out transaction-scoped repositories. fn's Tx must not escape fn.
// The transaction commits when fn returns nil and rolls back otherwise.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx groups every repository operation available inside one transaction.
type Tx interface {
	UserRepo
	TokenRepo
	JobRepo
	MilestoneRepo
	EscrowRepo
	DisputeRepo
}

// UserFilter narrows ListUsers; zero fields match everything.
type UserFilter struct {
	Role      domain.Role
	KYCStatus domain.KYCStatus
}

type UserRepo interface {
	CreateUser(ctx context.Context, u *domain.User) error
	UserByID(ctx context.Context, id string) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsers(ctx context.Context, f UserFilter) ([]domain.User, error)
	UpdateUserKYC(ctx context.Context, id string, status domain.KYCStatus, verifiedAt *time.Time) error
}

type TokenRepo interface {
	CreateToken(ctx context.Context, t domain.Token) error
	TokenUserID(ctx context.Context, token string) (string, error)
	DeleteToken(ctx context.Context, token string) error
}

// JobFilter narrows ListJobs. Results are ordered newest first.
type JobFilter struct {
	ApprovedOnly bool
	Status       domain.JobStatus
}

type JobRepo interface {
	CreateJob(ctx context.Context, j *domain.Job) error
	// JobByID loads a job; forUpdate locks the row until the transaction ends.
	JobByID(ctx context.Context, id string, forUpdate bool) (domain.Job, error)
	ListJobs(ctx context.Context, f JobFilter) ([]domain.Job, error)
	UpdateJob(ctx context.Context, j domain.Job) error
}

type MilestoneRepo interface {
	CreateMilestone(ctx context.Context, m *domain.Milestone) error
	MilestonesByJob(ctx context.Context, jobID string) ([]domain.Milestone, error)
}

type EscrowRepo interface {
	// CreateEscrow returns ErrDuplicate when the job already has an escrow.
	CreateEscrow(ctx context.Context, e *domain.Escrow) error
	EscrowByJob(ctx context.Context, jobID string, forUpdate bool) (domain.Escrow, error)
	UpdateEscrow(ctx context.Context, e domain.Escrow) error
}

// DisputeFilter narrows ListDisputes; zero Status matches everything.
type DisputeFilter struct {
	Status domain.DisputeStatus
}

type DisputeRepo interface {
	CreateDispute(ctx context.Context, d *domain.Dispute) error
	DisputeByID(ctx context.Context, id string, forUpdate bool) (domain.Dispute, error)
	ListDisputes(ctx context.Context, f DisputeFilter) ([]domain.Dispute, error)
	UpdateDispute(ctx context.Context, d domain.Dispute) error
}
