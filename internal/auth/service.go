// Package auth owns registration, opaque bearer tokens and the role gate.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trusthub.org/internal/apperr"
	"trusthub.org/internal/domain"
	"trusthub.org/internal/obs"
	"trusthub.org/internal/store"
	"trusthub.org/internal/validate"
)

// Service resolves tokens to users and manages accounts.
type Service struct {
	store store.Store
	now   func() time.Time
	cost  int
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithBcryptCost sets the password hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	Role        string `json:"role"`
	CompanyName string `json:"company_name"`
	TaxID       string `json:"tax_id"`
	Bio         string `json:"bio"`
	Phone       string `json:"phone"`
}

// LoginInput carries credentials for Login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is a user together with a freshly issued token.
type Session struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := validate.Struct(in); err != nil {
		return Session{}, err
	}
	role := domain.RoleCompany
	if in.Role != "" {
		r, err := domain.ParseRole(in.Role)
		if err != nil || (r != domain.RoleCompany && r != domain.RoleExpert) {
			return Session{}, apperr.Validation("invalid role, must be company or expert")
		}
		role = r
	}
	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("auth: hash password: %w", err)
	}

	u := domain.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Avatar:       Initials(in.Name),
		Role:         role,
		KYCStatus:    domain.KYCPending,
		Badge:        domain.BadgeTrial,
		CompanyName:  in.CompanyName,
		TaxID:        in.TaxID,
		Bio:          in.Bio,
		Phone:        in.Phone,
	}
	var sess Session
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(ctx, &u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("email already registered")
			}
			return err
		}
		tok, err := s.issue(ctx, tx, u.ID)
		if err != nil {
			return err
		}
		sess = Session{User: u, Token: tok}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	obs.Info("user_registered", map[string]any{"user_id": u.ID, "role": string(u.Role)})
	return sess, nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return Session{}, apperr.Validation("email and password are required")
	}
	var sess Session
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		u, err := tx.UserByEmail(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Unauthenticated("invalid email or password")
		}
		if err != nil {
			return err
		}
		if VerifyPassword(u.PasswordHash, in.Password) != nil {
			return apperr.Unauthenticated("invalid email or password")
		}
		tok, err := s.issue(ctx, tx, u.ID)
		if err != nil {
			return err
		}
		sess = Session{User: u, Token: tok}
		return nil
	})
	return sess, err
}

func (s *Service) issue(ctx context.Context, tx store.Tx, userID string) (string, error) {
	tok, err := NewToken()
	if err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	if err := tx.CreateToken(ctx, domain.Token{Value: tok, UserID: userID, CreatedAt: s.now()}); err != nil {
		return "", err
	}
	return tok, nil
}

// Logout deletes the token. Unknown or empty tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.DeleteToken(ctx, token)
	})
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, apperr.Unauthenticated("no token provided")
	}
	var u domain.User
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		userID, err := tx.TokenUserID(ctx, token)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Unauthenticated("invalid token")
		}
		if err != nil {
			return err
		}
		u, err = tx.UserByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Unauthenticated("invalid token")
		}
		return err
	})
	return u, err
}

// Authorize fails Forbidden unless u holds one of roles.
func Authorize(u domain.User, roles ...domain.Role) error {
	for _, r := range roles {
		if u.Role == r {
			return nil
		}
	}
	if len(roles) == 1 {
		return apperr.Forbidden("%s access required", roles[0])
	}
	return apperr.Forbidden("insufficient role")
}

// ListUsers returns users filtered by optional role and KYC status strings.
func (s *Service) ListUsers(ctx context.Context, role, kycStatus string) ([]domain.User, error) {
	var f store.UserFilter
	if role != "" {
		r, err := domain.ParseRole(role)
		if err != nil {
			return nil, apperr.Validation("invalid role: %s", role)
		}
		f.Role = r
	}
	if kycStatus != "" {
		k, err := domain.ParseKYCStatus(kycStatus)
		if err != nil {
			return nil, apperr.Validation("invalid kyc status: %s", kycStatus)
		}
		f.KYCStatus = k
	}
	var users []domain.User
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		users, err = tx.ListUsers(ctx, f)
		return err
	})
	return users, err
}

func (s *Service) VerifyKYC(ctx context.Context, userID string) (domain.User, error) {
	now := s.now()
	return s.setKYC(ctx, userID, domain.KYCVerified, &now, "")
}

// RejectKYC clears the verification timestamp. reason is only logged.
func (s *Service) RejectKYC(ctx context.Context, userID, reason string) (domain.User, error) {
	return s.setKYC(ctx, userID, domain.KYCRejected, nil, strings.TrimSpace(reason))
}

func (s *Service) setKYC(ctx context.Context, userID string, status domain.KYCStatus, at *time.Time, reason string) (domain.User, error) {
	var u domain.User
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.UpdateUserKYC(ctx, userID, status, at); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.NotFound("user not found")
			}
			return err
		}
		var err error
		u, err = tx.UserByID(ctx, userID)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	fields := map[string]any{"user_id": userID, "kyc_status": string(status)}
	if reason != "" {
		fields["reason"] = reason
	}
	obs.Info("kyc_updated", fields)
	return u, nil
}
