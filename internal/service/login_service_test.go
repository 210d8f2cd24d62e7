package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/overmark/roomaccess/internal/domain"
	"github.com/overmark/roomaccess/internal/identity"
	"github.com/overmark/roomaccess/pkg/auth"
)

// ---------- Mocks ----------

type mockAccount struct {
	password string
	meta     identity.Metadata
}

type mockAuthenticator struct {
	accounts    map[string]*mockAccount
	signInCalls int
	signUpCalls int
	signUpErr   error
}

func newMockAuthenticator() *mockAuthenticator {
	return &mockAuthenticator{accounts: make(map[string]*mockAccount)}
}

func (m *mockAuthenticator) SignIn(_ context.Context, email, secret string) (*identity.Session, error) {
	m.signInCalls++
	acct, ok := m.accounts[email]
	if !ok || acct.password != secret {
		return nil, identity.ErrBadCredentials
	}
	return &identity.Session{AccessToken: "collab-token", Email: email, Metadata: acct.meta}, nil
}

func (m *mockAuthenticator) SignUp(_ context.Context, email, secret string, meta identity.Metadata) (*identity.Session, error) {
	m.signUpCalls++
	if m.signUpErr != nil {
		return nil, m.signUpErr
	}
	if _, ok := m.accounts[email]; ok {
		return nil, identity.ErrAccountExists
	}
	m.accounts[email] = &mockAccount{password: secret, meta: meta}
	return &identity.Session{AccessToken: "collab-token", Email: email, Metadata: meta}, nil
}

func (m *mockAuthenticator) SignOut(context.Context, string) error { return nil }

func newTestLoginService(repo *mockCodeRepo, authn identity.Authenticator) (LoginService, RegistryService) {
	cfg := testConfig()
	registry := NewRegistryService(repo, &mockPublisher{}, cfg)
	return NewLoginService(registry, authn, &mockPublisher{}, cfg), registry
}

// ---------- Tests ----------

func TestFirstUseProvisionsExactlyOnce(t *testing.T) {
	authn := newMockAuthenticator()
	login, registry := newTestLoginService(newMockCodeRepo(), authn)
	ctx := context.Background()

	rc, err := registry.IssueCode(ctx, "12", "Jens Hansen", "")
	if err != nil {
		t.Fatalf("IssueCode error: %v", err)
	}

	resp, err := login.LoginWithCode(ctx, &domain.CodeLoginRequest{Code: rc.Code})
	if err != nil {
		t.Fatalf("first login error: %v", err)
	}
	if resp.RoomNumber != "12" || resp.Role != domain.RoleResident {
		t.Errorf("unexpected session %+v", resp)
	}

	acct, ok := authn.accounts["room12@overmark.local"]
	if !ok {
		t.Fatal("expected room12@overmark.local account to be provisioned")
	}
	if acct.password != rc.Code {
		t.Error("account secret must be the active code")
	}
	if acct.meta.RoomNumber != "12" || acct.meta.Role != "resident" {
		t.Errorf("unexpected sign-up metadata %+v", acct.meta)
	}
	if acct.meta.DisplayName != "Jens Hansen" {
		t.Errorf("expected snapshotted resident name, got %q", acct.meta.DisplayName)
	}
	if authn.signUpCalls != 1 {
		t.Errorf("expected exactly one sign-up, got %d", authn.signUpCalls)
	}

	// Second login signs straight in; no re-provisioning.
	if _, err := login.LoginWithCode(ctx, &domain.CodeLoginRequest{Code: rc.Code}); err != nil {
		t.Fatalf("second login error: %v", err)
	}
	if authn.signUpCalls != 1 {
		t.Errorf("second login re-provisioned: %d sign-ups", authn.signUpCalls)
	}
	if len(authn.accounts) != 1 {
		t.Errorf("expected one account, got %d", len(authn.accounts))
	}
}

func TestDeactivatedCodeFailsWithoutSideEffects(t *testing.T) {
	authn := newMockAuthenticator()
	login, registry := newTestLoginService(newMockCodeRepo(), authn)
	ctx := context.Background()

	old, err := registry.IssueCode(ctx, "4", "", "")
	if err != nil {
		t.Fatalf("IssueCode error: %v", err)
	}
	if _, err := registry.RotateCode(ctx, "4", ""); err != nil {
		t.Fatalf("RotateCode error: %v", err)
	}

	// Twice, same result, no authenticator traffic either time.
	for i := 0; i < 2; i++ {
		_, err := login.LoginWithCode(ctx, &domain.CodeLoginRequest{Code: old.Code})
		if !errors.Is(err, domain.ErrInvalidOrExpiredCode) {
			t.Fatalf("attempt %d: expected ErrInvalidOrExpiredCode, got %v", i+1, err)
		}
	}
	if authn.signInCalls != 0 || authn.signUpCalls != 0 {
		t.Errorf("deactivated code must never reach the authenticator (signIn=%d signUp=%d)",
			authn.signInCalls, authn.signUpCalls)
	}
	if len(authn.accounts) != 0 {
		t.Error("no account may be created for a deactivated code")
	}
}

func TestUnknownCodeFailsWithoutAuthenticatorCall(t *testing.T) {
	authn := newMockAuthenticator()
	login, _ := newTestLoginService(newMockCodeRepo(), authn)

	_, err := login.LoginWithCode(context.Background(), &domain.CodeLoginRequest{Code: "ZZZZZZZZ"})
	if !errors.Is(err, domain.ErrInvalidOrExpiredCode) {
		t.Fatalf("expected ErrInvalidOrExpiredCode, got %v", err)
	}
	if authn.signInCalls != 0 {
		t.Error("unresolved code must not trigger a sign-in attempt")
	}
}

func TestStaleAccountCredentialFailsWithoutProvisioning(t *testing.T) {
	authn := newMockAuthenticator()
	// The account exists but carries a password from before the account
	// boundary was redrawn.
	authn.accounts["room8@overmark.local"] = &mockAccount{password: "OLDSECRET"}

	login, registry := newTestLoginService(newMockCodeRepo(), authn)
	ctx := context.Background()

	rc, err := registry.IssueCode(ctx, "8", "", "")
	if err != nil {
		t.Fatalf("IssueCode error: %v", err)
	}

	_, err = login.LoginWithCode(ctx, &domain.CodeLoginRequest{Code: rc.Code})
	if !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if authn.accounts["room8@overmark.local"].password != "OLDSECRET" {
		t.Error("failed login must not touch the existing account")
	}
}

func TestProvisioningFailureIsClassified(t *testing.T) {
	authn := newMockAuthenticator()
	authn.signUpErr = fmt.Errorf("upstream unavailable")

	login, registry := newTestLoginService(newMockCodeRepo(), authn)
	ctx := context.Background()

	rc, err := registry.IssueCode(ctx, "15", "", "")
	if err != nil {
		t.Fatalf("IssueCode error: %v", err)
	}

	_, err = login.LoginWithCode(ctx, &domain.CodeLoginRequest{Code: rc.Code})
	if !errors.Is(err, domain.ErrProvisioningFailed) {
		t.Fatalf("expected ErrProvisioningFailed, got %v", err)
	}
	if len(authn.accounts) != 0 {
		t.Error("failed provisioning must not leave an account behind")
	}
}

func TestIssueLoginRotateScenario(t *testing.T) {
	authn := newMockAuthenticator()
	login, registry := newTestLoginService(newMockCodeRepo(), authn)
	ctx := context.Background()

	issued, err := registry.IssueCode(ctx, "12", "", "")
	if err != nil {
		t.Fatalf("IssueCode error: %v", err)
	}
	if len(issued.Code) != 8 {
		t.Fatalf("expected 8-char code, got %q", issued.Code)
	}

	resolved, err := registry.ResolveCode(ctx, issued.Code)
	if err != nil || resolved.RoomNumber != "12" {
		t.Fatalf("ResolveCode: %v / %+v", err, resolved)
	}

	if _, err := login.LoginWithCode(ctx, &domain.CodeLoginRequest{Code: issued.Code}); err != nil {
		t.Fatalf("login error: %v", err)
	}
	if _, ok := authn.accounts["room12@overmark.local"]; !ok {
		t.Fatal("expected provisioned room12 identity")
	}

	rotated, err := registry.RotateCode(ctx, "12", "")
	if err != nil {
		t.Fatalf("RotateCode error: %v", err)
	}

	if _, err := registry.ResolveCode(ctx, issued.Code); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("old code must be NotFound after rotation, got %v", err)
	}
	resolved, err = registry.ResolveCode(ctx, rotated.Code)
	if err != nil || resolved.RoomNumber != "12" {
		t.Fatalf("new code should resolve to room 12: %v / %+v", err, resolved)
	}
}

func TestStaffLoginNormalizesLegacyRole(t *testing.T) {
	authn := newMockAuthenticator()
	authn.accounts["pia@overmark.local"] = &mockAccount{
		password: "hunter22",
		meta:     identity.Metadata{Role: "personale"},
	}

	login, _ := newTestLoginService(newMockCodeRepo(), authn)

	resp, err := login.StaffLogin(context.Background(), &domain.StaffLoginRequest{
		Email:    "Pia@Overmark.local",
		Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("StaffLogin error: %v", err)
	}
	if resp.Role != domain.RoleStaff {
		t.Errorf("expected normalized staff role, got %q", resp.Role)
	}

	claims, err := auth.Parse(resp.AccessToken, "test-secret")
	if err != nil {
		t.Fatalf("token parse error: %v", err)
	}
	if claims.Role != "staff" || claims.Sub != "pia@overmark.local" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestStaffLoginRejectsResidents(t *testing.T) {
	authn := newMockAuthenticator()
	authn.accounts["room3@overmark.local"] = &mockAccount{
		password: "SOMECODE",
		meta:     identity.Metadata{Role: "beboer", RoomNumber: "3"},
	}

	login, _ := newTestLoginService(newMockCodeRepo(), authn)

	_, err := login.StaffLogin(context.Background(), &domain.StaffLoginRequest{
		Email:    "room3@overmark.local",
		Password: "SOMECODE",
	})
	if !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed for resident role, got %v", err)
	}
}
