// Package oauth manages the OAuth tokens of the OneDrive and Google Calendar integrations.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/diewo77/portail-cabinet/internal/models"
)

var (
	ErrNotConnected  = errors.New("oauth: integration not connected")
	ErrNotConfigured = errors.New("oauth: integration not configured")
)

// RefreshMargin is how close to expiry a token gets refreshed.
const RefreshMargin = 5 * time.Minute

// refreshTimeout bounds a shared refresh once it is detached from its caller.
const refreshTimeout = 30 * time.Second

// Status is the connection state exposed to the settings page.
type Status struct {
	Service            string     `json:"service"`
	Configured         bool       `json:"configured"`
	Connected          bool       `json:"connected"`
	AccountEmail       string     `json:"account_email,omitempty"`
	AccountName        string     `json:"account_name,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	SelectedResourceID string     `json:"selected_resource_id,omitempty"`
	SyncMode           string     `json:"sync_mode,omitempty"`
}

// Service drives the authorization code flow and hands out valid access tokens.
type Service struct {
	provider Provider
	creds    Credentials
	conf     *oauth2.Config
	store    TokenStore
	log      *zap.Logger
	client   *http.Client
	now      func() time.Time
	refresh  singleflight.Group
}

type Option func(*Service)

// WithHTTPClient routes token and profile calls through c.
func WithHTTPClient(c *http.Client) Option { return func(s *Service) { s.client = c } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(p Provider, creds Credentials, store TokenStore, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		provider: p,
		creds:    creds,
		store:    store,
		log:      log.With(zap.String("service", p.Key)),
		client:   &http.Client{Timeout: 20 * time.Second},
		now:      time.Now,
		conf: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Endpoint:     p.Endpoint,
			Scopes:       p.Scopes,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Key() string { return s.provider.Key }

// IsConfigured reports whether the client credentials are all present.
func (s *Service) IsConfigured() bool { return s.creds.configured() }

func (s *Service) ctx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.client)
}

// AuthorizationURL builds the consent URL carrying state.
func (s *Service) AuthorizationURL(state string) (string, error) {
	if !s.IsConfigured() {
		return "", ErrNotConfigured
	}
	return s.conf.AuthCodeURL(state, s.provider.AuthParams...), nil
}

// CompleteOAuthFlow exchanges code, reads the account profile and stores the token.
// Selected resource and sync mode survive a reconnection.
func (s *Service) CompleteOAuthFlow(ctx context.Context, code string, adminID uint) (*models.OAuthToken, error) {
	if !s.IsConfigured() {
		return nil, ErrNotConfigured
	}
	tok, err := s.conf.Exchange(s.ctx(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	profile, profileErr := s.fetchProfile(ctx, tok.AccessToken)
	if profileErr != nil {
		// The token is valid even without a profile; keep going.
		s.log.Warn("profile lookup failed", zap.Error(profileErr))
	}

	rec, err := s.store.Get(ctx, s.provider.Key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &models.OAuthToken{Service: s.provider.Key, SyncMode: models.SyncModeAuto}
	}
	rec.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		rec.RefreshToken = tok.RefreshToken
	}
	rec.TokenType = tok.TokenType
	rec.Expiry = tok.Expiry
	if profileErr == nil {
		rec.AccountEmail = profile.Email
		rec.AccountName = profile.Name
	}
	if adminID != 0 {
		rec.ConnectedByID = &adminID
	}
	if rec.SyncMode == "" {
		rec.SyncMode = models.SyncModeAuto
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info("integration connected", zap.String("account", rec.AccountEmail))
	return rec, nil
}

func (s *Service) fetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	if s.provider.ProfileURL == "" || s.provider.DecodeProfile == nil {
		return Profile{}, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.provider.ProfileURL, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := s.client.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Profile{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("profile status %d", resp.StatusCode)
	}
	return s.provider.DecodeProfile(body)
}

// ValidAccessToken returns a usable access token, or "" when the integration
// is not connected or cannot be refreshed. Failures are logged.
func (s *Service) ValidAccessToken(ctx context.Context) string {
	tok, err := s.Token(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotConnected) {
			s.log.Warn("no valid access token", zap.Error(err))
		}
		return ""
	}
	return tok
}

// TokenProvider adapts the service to API clients. Every failure is reported
// as ErrNotConnected.
func (s *Service) TokenProvider() func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		if tok := s.ValidAccessToken(ctx); tok != "" {
			return tok, nil
		}
		return "", ErrNotConnected
	}
}

// Token returns the stored access token, refreshing it when it expires
// within RefreshMargin. Concurrent refreshes collapse into one call.
func (s *Service) Token(ctx context.Context) (string, error) {
	rec, err := s.store.Get(ctx, s.provider.Key)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", ErrNotConnected
	}
	if s.fresh(rec) {
		return rec.AccessToken, nil
	}
	// waiters share one refresh; a cancelled caller only stops waiting
	ch := s.refresh.DoChan(s.provider.Key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refreshToken(rctx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	}
}

func (s *Service) fresh(rec *models.OAuthToken) bool {
	return rec.AccessToken != "" && rec.Expiry.After(s.now().Add(RefreshMargin))
}

func (s *Service) refreshToken(ctx context.Context) (string, error) {
	rec, err := s.store.Get(ctx, s.provider.Key)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", ErrNotConnected
	}
	if s.fresh(rec) {
		return rec.AccessToken, nil
	}
	if rec.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token", ErrNotConnected)
	}
	src := s.conf.TokenSource(s.ctx(ctx), &oauth2.Token{
		RefreshToken: rec.RefreshToken,
		Expiry:       s.now().Add(-time.Minute),
	})
	tok, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
			s.log.Warn("refresh token revoked, disconnecting", zap.Error(err))
			if delErr := s.store.Delete(ctx, s.provider.Key); delErr != nil {
				s.log.Error("failed to delete revoked token", zap.Error(delErr))
			}
			return "", fmt.Errorf("%w: refresh token revoked", ErrNotConnected)
		}
		return "", fmt.Errorf("refresh token: %w", err)
	}
	rec.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		rec.RefreshToken = tok.RefreshToken
	}
	rec.TokenType = tok.TokenType
	rec.Expiry = tok.Expiry
	if err := s.store.Save(ctx, rec); err != nil {
		return "", err
	}
	s.log.Debug("access token refreshed", zap.Time("expiry", tok.Expiry))
	return rec.AccessToken, nil
}

// Disconnect deletes the token record.
func (s *Service) Disconnect(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.provider.Key); err != nil {
		return err
	}
	s.log.Info("integration disconnected")
	return nil
}

func (s *Service) Status(ctx context.Context) (Status, error) {
	st := Status{Service: s.provider.Key, Configured: s.IsConfigured()}
	rec, err := s.store.Get(ctx, s.provider.Key)
	if err != nil {
		return st, err
	}
	if rec == nil {
		return st, nil
	}
	exp := rec.Expiry
	st.Connected = true
	st.AccountEmail = rec.AccountEmail
	st.AccountName = rec.AccountName
	st.ExpiresAt = &exp
	st.SelectedResourceID = rec.SelectedResourceID
	st.SyncMode = rec.SyncMode
	return st, nil
}

// Record returns the stored token or nil.
func (s *Service) Record(ctx context.Context) (*models.OAuthToken, error) {
	return s.store.Get(ctx, s.provider.Key)
}

// AutoSync reports a connected integration in automatic mode.
func (s *Service) AutoSync(ctx context.Context) bool {
	rec, err := s.store.Get(ctx, s.provider.Key)
	return err == nil && rec != nil && rec.SyncMode != models.SyncModeManual
}

// UpdateSettings changes the selected resource and/or the sync mode. Nil leaves a value as is.
func (s *Service) UpdateSettings(ctx context.Context, resourceID, mode *string) error {
	rec, err := s.store.Get(ctx, s.provider.Key)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotConnected
	}
	if resourceID != nil {
		rec.SelectedResourceID = *resourceID
	}
	if mode != nil {
		if *mode != models.SyncModeAuto && *mode != models.SyncModeManual {
			return fmt.Errorf("invalid sync mode %q", *mode)
		}
		rec.SyncMode = *mode
	}
	return s.store.Save(ctx, rec)
}
