package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the single authorization attribute of a user.
type Role string

const (
	RoleCompany    Role = "company"
	RoleExpert     Role = "expert"
	RoleAdmin      Role = "admin"
	RoleArbitrator Role = "arbitrator"
)

// ParseRole normalises s and rejects values outside the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleCompany, RoleExpert, RoleAdmin, RoleArbitrator:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsStaff reports whether r is a platform role that cannot self-register.
func (r Role) IsStaff() bool { return r == RoleAdmin || r == RoleArbitrator }

// KYCStatus tracks identity verification, mutated only by admins.
type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

func ParseKYCStatus(s string) (KYCStatus, error) {
	k := KYCStatus(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KYCPending, KYCVerified, KYCRejected:
		return k, nil
	}
	return "", fmt.Errorf("unknown kyc status %q", s)
}

// Badge is the trust tier shown next to a user.
type Badge string

const (
	BadgeTrial    Badge = "trial"
	BadgeVerified Badge = "verified"
	BadgePremium  Badge = "premium"
	BadgeElite    Badge = "elite"
)

// User is an account on the platform. Users are never deleted.
type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Avatar        string     `json:"avatar"`
	Role          Role       `json:"role"`
	KYCStatus     KYCStatus  `json:"kyc_status"`
	KYCVerifiedAt *time.Time `json:"kyc_verified_at,omitempty"`
	Badge         Badge      `json:"badge"`
	TrustScore    int        `json:"trust_score"`
	CompanyName   string     `json:"company_name,omitempty"`
	TaxID         string     `json:"tax_id,omitempty"`
	Bio           string     `json:"bio,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Token binds an opaque bearer string to exactly one user until logout.
type Token struct {
	Value     string
	UserID    string
	CreatedAt time.Time
}
