package domain

import (
	"fmt"
	"strings"
	"time"
)

// DisputeStatus is the one canonical enum shared by storage and the API.
type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeInReview DisputeStatus = "in_review"
	DisputeResolved DisputeStatus = "resolved"
	DisputeClosed   DisputeStatus = "closed"
)

func ParseDisputeStatus(s string) (DisputeStatus, error) {
	st := DisputeStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case DisputeOpen, DisputeInReview, DisputeResolved, DisputeClosed:
		return st, nil
	}
	return "", fmt.Errorf("unknown dispute status %q", s)
}

// Terminal reports whether the dispute accepts no further changes.
func (s DisputeStatus) Terminal() bool {
	return s == DisputeResolved || s == DisputeClosed
}

// Winner names the party a resolution favours.
type Winner string

const (
	WinnerClient Winner = "client"
	WinnerExpert Winner = "expert"
)

func ParseWinner(s string) (Winner, error) {
	w := Winner(strings.ToLower(strings.TrimSpace(s)))
	switch w {
	case WinnerClient, WinnerExpert:
		return w, nil
	}
	return "", fmt.Errorf("unknown winner %q", s)
}

// Dispute is opened against a job and settles its escrow on resolution.
type Dispute struct {
	ID         string        `json:"id"`
	JobID      string        `json:"job_id"`
	OpenedBy   string        `json:"opened_by"`
	AssignedTo string        `json:"assigned_to,omitempty"`
	Status     DisputeStatus `json:"status"`
	Reason     string        `json:"reason"`
	Evidence   string        `json:"evidence,omitempty"`
	Resolution string        `json:"resolution,omitempty"`
	Decision   Winner        `json:"decision,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}
