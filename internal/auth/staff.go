package auth

import (
	"context"
	"errors"
	"fmt"

	"trusthub.org/internal/domain"
	"trusthub.org/internal/obs"
	"trusthub.org/internal/store"
)

// StaffAccount is a privileged user that cannot self-register.
type StaffAccount struct {
	ID       string
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// MinStaffPasswordLen is the shortest password accepted for a staff account.
const MinStaffPasswordLen = 12

// EnsureStaff creates any missing staff account. Existing emails are left
// untouched, so it is safe to run on every start. An empty ID lets the store
// assign one.
func (s *Service) EnsureStaff(ctx context.Context, accounts []StaffAccount) error {
	for _, a := range accounts {
		if !a.Role.IsStaff() {
			return fmt.Errorf("auth: %s: role %q cannot be seeded as staff", a.Email, a.Role)
		}
		if len(a.Password) < MinStaffPasswordLen {
			return fmt.Errorf("auth: %s: staff password must be at least %d characters", a.Email, MinStaffPasswordLen)
		}
		hash, err := HashPassword(a.Password, s.cost)
		if err != nil {
			return fmt.Errorf("auth: hash %s: %w", a.Email, err)
		}
		now := s.now()
		u := domain.User{
			ID:            a.ID,
			Name:          a.Name,
			Email:         a.Email,
			PasswordHash:  hash,
			Avatar:        Initials(a.Name),
			Role:          a.Role,
			KYCStatus:     domain.KYCVerified,
			KYCVerifiedAt: &now,
			Badge:         domain.BadgeVerified,
		}
		err = s.store.WithTx(ctx, func(tx store.Tx) error {
			return tx.CreateUser(ctx, &u)
		})
		switch {
		case errors.Is(err, store.ErrDuplicate):
		case err != nil:
			return fmt.Errorf("auth: seed %s: %w", a.Email, err)
		default:
			obs.Info("staff_account_created", map[string]any{"user_id": u.ID, "role": string(u.Role)})
		}
	}
	return nil
}
