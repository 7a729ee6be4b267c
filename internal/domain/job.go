package domain

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus is a position in the job lifecycle.
type JobStatus string

const (
	JobDraft           JobStatus = "draft"
	JobPendingApproval JobStatus = "pending_approval"
	JobActive          JobStatus = "active"
	JobInProgress      JobStatus = "in_progress"
	JobDelivered       JobStatus = "delivered"
	JobDisputed        JobStatus = "disputed"
	JobCompleted       JobStatus = "completed"
	JobClosed          JobStatus = "closed"
)

// JobStatuses lists every status in lifecycle order.
var JobStatuses = []JobStatus{
	JobDraft,
	JobPendingApproval,
	JobActive,
	JobInProgress,
	JobDelivered,
	JobDisputed,
	JobCompleted,
	JobClosed,
}

// Rank returns the position of s in the lifecycle order, or -1.
func (s JobStatus) Rank() int {
	for i, v := range JobStatuses {
		if v == s {
			return i
		}
	}
	return -1
}

// jobTransitions holds every allowed status edge.
var jobTransitions = map[JobStatus][]JobStatus{
	JobDraft:           {JobPendingApproval},
	JobPendingApproval: {JobActive},
	JobActive:          {JobInProgress},
	JobInProgress:      {JobDelivered, JobDisputed},
	JobDelivered:       {JobDisputed, JobCompleted},
	JobDisputed:        {JobCompleted},
	JobCompleted:       {JobClosed},
}

// CanTransitionTo reports whether a job in s may move to next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, t := range jobTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(strings.ToLower(strings.TrimSpace(s)))
	if st.Rank() < 0 {
		return "", fmt.Errorf("unknown job status %q", s)
	}
	return st, nil
}

// ServiceTier selects how much the platform is involved and what it charges.
type ServiceTier string

const (
	TierDirectTrust    ServiceTier = "direct_trust"
	TierGuidedTrust    ServiceTier = "guided_trust"
	TierDelegatedTrust ServiceTier = "delegated_trust"
)

func ParseServiceTier(s string) (ServiceTier, error) {
	t := ServiceTier(strings.TrimSpace(s))
	switch t {
	case TierDirectTrust, TierGuidedTrust, TierDelegatedTrust:
		return t, nil
	}
	return "", fmt.Errorf("unknown service tier %q", s)
}

// Job is owned by its client; the expert is assigned but does not own it.
type Job struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Deliverables    string      `json:"deliverables,omitempty"`
	ServiceType     ServiceTier `json:"service_type"`
	Budget          Amount      `json:"budget"`
	Deadline        *time.Time  `json:"deadline,omitempty"`
	ClientID        string      `json:"client_id"`
	ExpertID        string      `json:"expert_id,omitempty"`
	Status          JobStatus   `json:"status"`
	ApprovedByAdmin bool        `json:"approved_by_admin"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Milestone is a slice of work on a job with its own amount and status.
type Milestone struct {
	ID          string     `json:"id"`
	JobID       string     `json:"job_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Amount      Amount     `json:"amount"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Status      string     `json:"status"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MilestonePending is the initial status of a milestone.
const MilestonePending = "pending"
