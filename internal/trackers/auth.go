package trackers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amaumene/trackarr/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// AuthKind classifies an AuthError
type AuthKind string

const (
	AuthLoginFailed        AuthKind = "login_failed"
	AuthNoCookies          AuthKind = "no_cookies"
	AuthMissingCredentials AuthKind = "missing_credentials"
)

// AuthError is returned when a tracker login does not yield a session
type AuthError struct {
	Kind    AuthKind
	Tracker string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s auth: %s: %v", e.Tracker, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s auth: %s", e.Tracker, e.Kind)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches any AuthError of the same kind
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// ErrorKind returns the classification string of the error
func (e *AuthError) ErrorKind() string {
	return string(e.Kind)
}

var (
	ErrLoginFailed        = &AuthError{Kind: AuthLoginFailed}
	ErrNoCookies          = &AuthError{Kind: AuthNoCookies}
	ErrMissingCredentials = &AuthError{Kind: AuthMissingCredentials}
)

// CookieStore keeps session cookies between collections
type CookieStore interface {
	GetCookies(key string) (string, bool)
	SaveCookies(key, cookies string)
	DeleteCookies(key string)
}

// MemoryCookieStore implements CookieStore with an expiring in-memory cache
type MemoryCookieStore struct {
	cache *cache.Cache
}

// NewMemoryCookieStore creates a store whose entries expire after ttl
func NewMemoryCookieStore(ttl time.Duration) *MemoryCookieStore {
	return &MemoryCookieStore{cache: cache.New(ttl, 2*ttl)}
}

// GetCookies returns the cookie header stored under key
func (s *MemoryCookieStore) GetCookies(key string) (string, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// SaveCookies stores a cookie header under key
func (s *MemoryCookieStore) SaveCookies(key, cookies string) {
	s.cache.SetDefault(key, cookies)
}

// DeleteCookies drops the entry for key
func (s *MemoryCookieStore) DeleteCookies(key string) {
	s.cache.Delete(key)
}

// Authenticator logs into trackers and hands out cookie headers
type Authenticator struct {
	httpClient *http.Client
	store      CookieStore
	group      singleflight.Group
	attempts   uint64
	retryDelay time.Duration
	logger     *logrus.Logger
}

// NewAuthenticator creates an authenticator. Redirects are never followed so
// the Set-Cookie headers of the login response are visible.
func NewAuthenticator(store CookieStore, timeout time.Duration, attempts int, logger *logrus.Logger) *Authenticator {
	if attempts < 1 {
		attempts = 1
	}
	return &Authenticator{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		store:      store,
		attempts:   uint64(attempts),
		retryDelay: time.Second,
		logger:     logger,
	}
}

func cookieKey(t *Tracker, baseURL, username string) string {
	return t.Name() + "|" + baseURL + "|" + username
}

// Cookies returns a cookie header for the tracker, logging in when no
// session is cached. Concurrent callers share one login.
func (a *Authenticator) Cookies(ctx context.Context, t *Tracker, baseURL string, cred *models.Credential) (string, error) {
	if cred == nil || cred.Username == "" || cred.Password == "" {
		return "", &AuthError{Kind: AuthMissingCredentials, Tracker: t.Name()}
	}

	key := cookieKey(t, baseURL, cred.Username)
	if cookies, found := a.store.GetCookies(key); found {
		return cookies, nil
	}

	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		cookies, err := a.Login(ctx, t, baseURL, *cred)
		if err != nil {
			return "", err
		}
		a.store.SaveCookies(key, cookies)
		return cookies, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate forgets the cached session, forcing a login on next use
func (a *Authenticator) Invalidate(t *Tracker, baseURL, username string) {
	a.store.DeleteCookies(cookieKey(t, baseURL, username))
}

// Login performs the tracker's login POST and returns the cookies it set as
// a "name=value; name2=value2" header.
func (a *Authenticator) Login(ctx context.Context, t *Tracker, baseURL string, cred models.Credential) (string, error) {
	form := url.Values{}
	for k, v := range t.Login.Extra {
		form[k] = v
	}
	form.Set(t.Login.UsernameField, cred.Username)
	form.Set(t.Login.PasswordField, cred.Password)
	body := form.Encode()

	var cookies string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+t.Login.Path, strings.NewReader(body))
		if err != nil {
			return backoff.Permanent(&AuthError{Kind: AuthLoginFailed, Tracker: t.Name(), Err: err})
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return &AuthError{Kind: AuthLoginFailed, Tracker: t.Name(), Err: err}
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 500 {
			return &AuthError{Kind: AuthLoginFailed, Tracker: t.Name(), Err: fmt.Errorf("status %d", resp.StatusCode)}
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(&AuthError{Kind: AuthLoginFailed, Tracker: t.Name(), Err: fmt.Errorf("status %d", resp.StatusCode)})
		}

		cookies = cookieHeader(resp.Cookies())
		if cookies == "" {
			return backoff.Permanent(&AuthError{Kind: AuthNoCookies, Tracker: t.Name()})
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.retryDelay), a.attempts-1),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		a.logger.WithFields(logrus.Fields{
			"tracker": t.Name(),
			"user":    cred.Username,
		}).WithError(err).Warn("Tracker login failed")
		return "", err
	}

	a.logger.WithField("tracker", t.Name()).Info("Logged into tracker")
	return cookies, nil
}

func cookieHeader(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Value == "" || c.Value == "deleted" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
