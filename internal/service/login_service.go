package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/overmark/roomaccess/internal/domain"
	"github.com/overmark/roomaccess/internal/identity"
	"github.com/overmark/roomaccess/pkg/auth"
	"github.com/overmark/roomaccess/pkg/config"
	"github.com/overmark/roomaccess/pkg/events"
	"github.com/overmark/roomaccess/pkg/logger"
)

// LoginService turns a scanned code into a session, provisioning the room's
// backend account on first use.
type LoginService interface {
	LoginWithCode(ctx context.Context, req *domain.CodeLoginRequest) (*domain.LoginResponse, error)
	StaffLogin(ctx context.Context, req *domain.StaffLoginRequest) (*domain.LoginResponse, error)
}

type loginService struct {
	registry      RegistryService
	authenticator identity.Authenticator
	eventBus      events.Publisher
	config        *config.Config
}

func NewLoginService(
	registry RegistryService,
	authenticator identity.Authenticator,
	eventBus events.Publisher,
	config *config.Config,
) LoginService {
	return &loginService{
		registry:      registry,
		authenticator: authenticator,
		eventBus:      eventBus,
		config:        config,
	}
}

// LoginWithCode resolves the code first and never contacts the authentication
// service for a code that is not currently active, so a stale scan cannot
// probe or provision anything.
func (s *loginService) LoginWithCode(ctx context.Context, req *domain.CodeLoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	rc, err := s.registry.ResolveCode(ctx, req.Code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidOrExpiredCode
	}
	if err != nil {
		return nil, err
	}

	email := rc.Identity(s.config.Identity.Domain)

	if _, err := s.authenticator.SignIn(ctx, email, rc.Code); err != nil {
		if !errors.Is(err, identity.ErrBadCredentials) {
			return nil, fmt.Errorf("sign-in failed: %w", err)
		}
		// Either the account does not exist yet (first use of this code) or
		// it still carries a superseded code as its password. Sign-up
		// disambiguates: it only succeeds in the first case.
		if err := s.provision(ctx, rc, email); err != nil {
			return nil, err
		}
	}

	return s.roomSession(rc)
}

func (s *loginService) provision(ctx context.Context, rc *domain.RoomCode, email string) error {
	meta := identity.Metadata{
		RoomNumber:  rc.RoomNumber,
		Role:        string(domain.RoleResident),
		DisplayName: displayName(rc),
	}

	if _, err := s.authenticator.SignUp(ctx, email, rc.Code, meta); err != nil {
		if errors.Is(err, identity.ErrAccountExists) {
			// The account exists but its password does not match the active
			// code. Expected after a rotation that draws a new account
			// boundary; staff diagnose from the log.
			logger.WarnContext(ctx, "Active code rejected for existing room account",
				"room", rc.RoomNumber, "identity", email)
			return domain.ErrAuthenticationFailed
		}
		logger.ErrorContext(ctx, "Room account provisioning failed",
			"error", err, "room", rc.RoomNumber, "identity", email)
		return fmt.Errorf("%w: %v", domain.ErrProvisioningFailed, err)
	}

	logger.InfoContext(ctx, "Provisioned room account", "room", rc.RoomNumber, "identity", email)

	if err := s.eventBus.Publish(ctx, events.RoomProvisioned, events.RoomProvisionedEvent{
		RoomNumber:    rc.RoomNumber,
		Identity:      email,
		ProvisionedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish room.provisioned event", "error", err, "room", rc.RoomNumber)
	}

	return nil
}

// StaffLogin authenticates a staff member against the authentication service
// and issues an admin-panel session. Residents cannot enter this way.
func (s *loginService) StaffLogin(ctx context.Context, req *domain.StaffLoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	session, err := s.authenticator.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrBadCredentials) {
			return nil, domain.ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("sign-in failed: %w", err)
	}

	role, ok := domain.ParseRole(session.Metadata.Role)
	if !ok || !role.IsStaff() {
		return nil, domain.ErrAuthenticationFailed
	}

	token, err := auth.NewAccessToken(req.Email, string(role), "", s.config.Auth.JWTSecret, s.config.Auth.StaffTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.Auth.StaffTokenTTL.Seconds()),
		Role:        role,
	}, nil
}

func (s *loginService) roomSession(rc *domain.RoomCode) (*domain.LoginResponse, error) {
	// The session belongs to the room identity, not to any one occupant.
	token, err := auth.NewAccessToken(
		rc.Identity(s.config.Identity.Domain),
		string(domain.RoleResident),
		rc.RoomNumber,
		s.config.Auth.JWTSecret,
		s.config.Auth.ResidentTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.Auth.ResidentTokenTTL.Seconds()),
		RoomNumber:  rc.RoomNumber,
		Role:        domain.RoleResident,
	}, nil
}

func displayName(rc *domain.RoomCode) string {
	if rc.ResidentName != "" {
		return rc.ResidentName
	}
	return "Room " + rc.RoomNumber
}
