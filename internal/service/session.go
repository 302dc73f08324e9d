package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/agrimarket/internal/api"
	"github.com/and161185/agrimarket/internal/errs"
	"github.com/and161185/agrimarket/internal/model"
)

// Phase is the state of the session bootstrapper.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseChecking
	PhaseHydrating
	PhaseAuthenticated
	PhaseAnonymous
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseChecking:
		return "checking"
	case PhaseHydrating:
		return "hydrating"
	case PhaseAuthenticated:
		return "ready(authenticated)"
	case PhaseAnonymous:
		return "ready(anonymous)"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Ready reports whether bootstrap has finished.
func (p Phase) Ready() bool { return p == PhaseAuthenticated || p == PhaseAnonymous }

const refreshKey = "auth-refresh"

// Login authenticates with creds, fetches the user and hydrates favorites.
// Concurrent logins with identical credentials share one network round trip.
// The shared call outlives a caller whose ctx ends; that caller gets ctx.Err().
func (s *Storefront) Login(ctx context.Context, creds model.Credentials) error {
	return s.shared(ctx, loginKey(creds), func(ctx context.Context) error {
		return s.login(ctx, creds)
	})
}

func loginKey(creds model.Credentials) string {
	sum := sha256.Sum256([]byte(creds.Password))
	return "login\x00" + creds.Username + "\x00" + hex.EncodeToString(sum[:])
}

// shared runs fn once per key among concurrent callers. fn gets a context that keeps the
// caller's values but not its cancellation, so one caller giving up does not fail the rest.
func (s *Storefront) shared(ctx context.Context, key string, fn func(context.Context) error) error {
	work := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(key, func() (any, error) {
		return nil, fn(work)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Storefront) login(ctx context.Context, creds model.Credentials) error {
	s.set(s.st.Loading.Set(true))
	s.set(s.st.Error.Set(""))

	tp, err := s.api.ObtainToken(ctx, creds)
	if err != nil {
		return s.failLogin(fmt.Errorf("obtain token: %w", err))
	}
	s.set(s.st.AccessToken.Set(ptr(tp.Access)))
	s.set(s.st.RefreshToken.Set(ptr(tp.Refresh)))
	s.api.SetAuthToken(tp.Access)

	u, err := s.api.Me(ctx)
	if err != nil {
		return s.failLogin(fmt.Errorf("fetch user: %w", err))
	}
	s.set(s.st.User.Set(&u))
	s.set(s.st.Error.Set(""))
	s.set(s.st.Loading.Set(false))
	s.markReady(PhaseAuthenticated)
	s.log.Info("logged in", zap.String("username", u.Username), zap.Int64("user_id", u.ID))

	if err := s.LoadFavorites(ctx); err != nil {
		s.log.Warn("favorites not loaded after login", zap.Error(err))
	}
	return nil
}

func (s *Storefront) failLogin(err error) error {
	s.clearSession()
	msg := api.Detail(err)
	if msg == "" {
		msg = "login failed"
	}
	s.set(s.st.Error.Set(msg))
	s.set(s.st.Loading.Set(false))
	s.markReady(PhaseAnonymous)
	s.log.Warn("login failed", zap.Error(err))
	return err
}

// Logout clears the session and favorites and navigates home. Calling it twice is harmless.
func (s *Storefront) Logout() {
	s.clearSession()
	s.markReady(PhaseAnonymous)
	s.nav.Navigate("/")
}

// Bootstrap restores the session from the persisted refresh token. It runs once per
// Storefront; later calls return nil without doing anything. On any failure the session
// is cleared and the returned error says why.
func (s *Storefront) Bootstrap(ctx context.Context) error {
	if !s.booted.CompareAndSwap(false, true) {
		return nil
	}

	if deref(s.st.RefreshToken.Get()) == "" {
		s.set(s.st.Phase.Set(PhaseAnonymous))
		s.set(s.st.Loading.Set(false))
		return nil
	}

	s.set(s.st.Loading.Set(true))
	defer func() { s.set(s.st.Loading.Set(false)) }()

	s.set(s.st.Phase.Set(PhaseChecking))
	if err := s.RefreshSession(ctx); err != nil {
		s.set(s.st.Phase.Set(PhaseAnonymous))
		return err
	}

	s.set(s.st.Phase.Set(PhaseHydrating))
	u, err := s.api.Me(ctx)
	if err != nil {
		s.clearSession()
		s.set(s.st.Phase.Set(PhaseAnonymous))
		s.log.Warn("session restore failed", zap.Error(err))
		return fmt.Errorf("fetch user: %w", err)
	}
	s.set(s.st.User.Set(&u))
	if err := s.LoadFavorites(ctx); err != nil {
		s.log.Warn("favorites not loaded during bootstrap", zap.Error(err))
	}
	s.set(s.st.Phase.Set(PhaseAuthenticated))
	s.log.Info("session restored", zap.String("username", u.Username))
	return nil
}

// RefreshSession exchanges the persisted refresh token for a new access token.
// Concurrent calls (including the one made by Bootstrap) share a round trip.
// On failure the session is cleared.
func (s *Storefront) RefreshSession(ctx context.Context) error {
	return s.shared(ctx, refreshKey, s.refresh)
}

func (s *Storefront) refresh(ctx context.Context) error {
	tok := deref(s.st.RefreshToken.Get())
	if tok == "" {
		s.clearSession()
		return fmt.Errorf("refresh session: %w", errs.ErrUnauthorized)
	}
	access, err := s.api.RefreshToken(ctx, tok)
	if err == nil && access == "" {
		err = fmt.Errorf("%w: empty access token", errs.ErrTransport)
	}
	if err != nil {
		s.clearSession()
		s.log.Warn("token refresh rejected", zap.Error(err))
		return fmt.Errorf("refresh session: %w", err)
	}
	s.set(s.st.AccessToken.Set(ptr(access)))
	s.api.SetAuthToken(access)
	return nil
}

// clearSession drops tokens, user and favorites and the default bearer header.
func (s *Storefront) clearSession() {
	s.set(s.st.AccessToken.Set(nil))
	s.set(s.st.RefreshToken.Set(nil))
	s.set(s.st.User.Set(nil))
	s.ClearFavorites()
	s.api.ClearAuthToken()
}

// markReady moves the phase only once bootstrap has settled it.
func (s *Storefront) markReady(p Phase) {
	if _, err := s.st.Phase.Update(func(cur Phase) Phase {
		if cur.Ready() {
			return p
		}
		return cur
	}); err != nil {
		s.log.Warn("phase update failed", zap.Error(err))
	}
}

// set logs persistence failures of writes whose in-memory effect already happened.
func (s *Storefront) set(err error) {
	if err != nil {
		s.log.Warn("state not persisted", zap.Error(err))
	}
}
