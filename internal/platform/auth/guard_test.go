package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubCredentialStore struct {
	access     string
	refresh    string
	hasAccess  bool
	hasRefresh bool

	storedAccess []string
	cleared      int
}

func (s *stubCredentialStore) AccessToken() (string, bool)  { return s.access, s.hasAccess }
func (s *stubCredentialStore) RefreshToken() (string, bool) { return s.refresh, s.hasRefresh }

func (s *stubCredentialStore) StoreAccessToken(token string) error {
	s.storedAccess = append(s.storedAccess, token)
	s.access = token
	s.hasAccess = true
	return nil
}

func (s *stubCredentialStore) Clear() error {
	s.cleared++
	s.access = ""
	s.refresh = ""
	s.hasAccess = false
	s.hasRefresh = false
	return nil
}

type stubRefresher struct {
	calls int
	token string
	err   error
}

func (s *stubRefresher) Refresh(context.Context, string) (string, error) {
	s.calls++
	return s.token, s.err
}

func signedToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	issuer, err := NewIssuer([]byte("guard-secret"), WithAccessTTL(ttl))
	if err != nil {
		t.Fatalf("NewIssuer returned error: %v", err)
	}
	pair, err := issuer.IssuePair("user-1", "alice", "client")
	if err != nil {
		t.Fatalf("IssuePair returned error: %v", err)
	}
	return pair.Access
}

func TestGuardRedirectsWithoutCredentialsAndWithoutNetwork(t *testing.T) {
	store := &stubCredentialStore{}
	refresher := &stubRefresher{}
	guard, err := NewGuard(store, refresher)
	if err != nil {
		t.Fatalf("NewGuard returned error: %v", err)
	}

	decision, err := guard.Authorize(context.Background())
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if !decision.RedirectToLogin || decision.Allowed {
		t.Fatalf("expected login redirect, got %+v", decision)
	}
	if refresher.calls != 0 {
		t.Fatalf("expected no refresh calls, got %d", refresher.calls)
	}
}

func TestGuardAllowsValidAccessToken(t *testing.T) {
	store := &stubCredentialStore{access: signedToken(t, time.Hour), hasAccess: true}
	refresher := &stubRefresher{}
	guard, err := NewGuard(store, refresher)
	if err != nil {
		t.Fatalf("NewGuard returned error: %v", err)
	}

	decision, err := guard.Authorize(context.Background())
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allow, got %+v", decision)
	}
	if refresher.calls != 0 {
		t.Fatalf("expected no refresh calls for fresh token, got %d", refresher.calls)
	}
}

func TestGuardRefreshesExpiredTokenExactlyOnce(t *testing.T) {
	fresh := signedToken(t, time.Hour)
	store := &stubCredentialStore{
		access:     signedToken(t, -time.Minute),
		hasAccess:  true,
		refresh:    "refresh-token",
		hasRefresh: true,
	}
	refresher := &stubRefresher{token: fresh}
	guard, err := NewGuard(store, refresher)
	if err != nil {
		t.Fatalf("NewGuard returned error: %v", err)
	}

	decision, err := guard.Authorize(context.Background())
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allow after refresh, got %+v", decision)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", refresher.calls)
	}
	if len(store.storedAccess) != 1 || store.storedAccess[0] != fresh {
		t.Fatalf("expected refreshed access token stored, got %v", store.storedAccess)
	}
}

func TestGuardClearsCredentialsWhenRefreshFails(t *testing.T) {
	store := &stubCredentialStore{
		access:     signedToken(t, -time.Minute),
		hasAccess:  true,
		refresh:    "refresh-token",
		hasRefresh: true,
	}
	refresher := &stubRefresher{err: errors.New("refresh rejected")}
	guard, err := NewGuard(store, refresher)
	if err != nil {
		t.Fatalf("NewGuard returned error: %v", err)
	}

	decision, err := guard.Authorize(context.Background())
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if !decision.RedirectToLogin {
		t.Fatalf("expected login redirect after failed refresh, got %+v", decision)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", refresher.calls)
	}
	if store.cleared != 1 {
		t.Fatalf("expected credentials cleared once, got %d", store.cleared)
	}
}

func TestGuardTreatsMalformedAccessTokenAsExpired(t *testing.T) {
	fresh := signedToken(t, time.Hour)
	store := &stubCredentialStore{
		access:     "not-a-token",
		hasAccess:  true,
		refresh:    "refresh-token",
		hasRefresh: true,
	}
	refresher := &stubRefresher{token: fresh}
	guard, err := NewGuard(store, refresher)
	if err != nil {
		t.Fatalf("NewGuard returned error: %v", err)
	}

	decision, err := guard.Authorize(context.Background())
	if err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}
	if !decision.Allowed {
		t.Fatalf("expected allow after refresh, got %+v", decision)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", refresher.calls)
	}
}
