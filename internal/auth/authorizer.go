package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"folio/internal/logging"
	"folio/internal/services"
)

const (
	callbackBindHost = "127.0.0.1"
	callbackHost     = "localhost"

	successPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>folio</title></head>
<body><h1>Authorization complete</h1><p>You can close this tab and return to the terminal.</p></body></html>
`
)

// Option customizes an Authorizer.
type Option func(*Authorizer)

// WithLogger sets the logger used for login and refresh diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authorizer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithBrowser replaces the function that opens the consent page.
func WithBrowser(open func(url string) error) Option {
	return func(a *Authorizer) {
		if open != nil {
			a.openBrowser = open
		}
	}
}

// WithPrompt registers a callback that receives the consent URL before the
// browser is opened, so it can be shown when no browser is available.
func WithPrompt(prompt func(url string)) Option {
	return func(a *Authorizer) {
		a.prompt = prompt
	}
}

// WithEndpoint overrides Google's OAuth endpoint.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(a *Authorizer) {
		a.endpoint = endpoint
	}
}

// Authorizer provides Drive credentials, running the browser flow when no
// token is stored.
type Authorizer struct {
	clientID     string
	clientSecret string
	port         int
	scopes       []string
	endpoint     oauth2.Endpoint
	store        *TokenStore
	logger       *slog.Logger
	openBrowser  func(string) error
	prompt       func(string)
}

// NewAuthorizer builds an Authorizer for the given OAuth client. The callback
// server listens on port; 0 picks a free port.
func NewAuthorizer(clientID, clientSecret string, port int, store *TokenStore, opts ...Option) *Authorizer {
	a := &Authorizer{
		clientID:     clientID,
		clientSecret: clientSecret,
		port:         port,
		scopes:       []string{drive.DriveScope},
		endpoint:     google.Endpoint,
		store:        store,
		logger:       logging.NewNop(),
		openBrowser:  openSystemBrowser,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.NewComponentLogger(a.logger, "auth")
	return a
}

// TokenSource returns a source of valid access tokens. Refreshed tokens are
// written back to the store.
func (a *Authorizer) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	token, err := a.store.Load()
	if errors.Is(err, ErrNoToken) {
		a.logger.Info("no stored credentials, starting browser authorization",
			logging.String(logging.FieldEventType, "auth_required"),
			logging.String("token_path", a.store.Path()),
		)
		token, err = a.Login(ctx)
	}
	if err != nil {
		return nil, err
	}

	cfg := a.oauthConfig(a.redirectURL(a.port))
	return &persistingSource{
		base:   cfg.TokenSource(ctx, token),
		store:  a.store,
		logger: a.logger,
		last:   token.AccessToken,
	}, nil
}

// Login runs the loopback authorization flow and stores the resulting token.
func (a *Authorizer) Login(ctx context.Context) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(callbackBindHost, strconv.Itoa(a.port)))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "auth", "listen for callback",
			fmt.Sprintf("port %d", a.port), err)
	}
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port
	cfg := a.oauthConfig(a.redirectURL(port))
	state := uuid.NewString()

	results := make(chan callbackResult, 1)
	server := &http.Server{
		Handler:           callbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if a.prompt != nil {
		a.prompt(authURL)
	}
	if err := a.openBrowser(authURL); err != nil {
		a.logger.Warn("could not open browser; open the authorization URL manually",
			logging.String(logging.FieldEventType, "browser_open_failed"),
			logging.Error(err),
			logging.String(logging.FieldImpact, "authorization waits for the URL to be visited"),
		)
	}

	var result callbackResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result = <-results:
	}
	if result.err != nil {
		return nil, services.Wrap(services.ErrPermanent, "auth", "authorize", "", result.err)
	}

	token, err := cfg.Exchange(ctx, result.code)
	if err != nil {
		return nil, services.Wrap(services.ErrPermanent, "auth", "exchange code", "", err)
	}
	if err := a.store.Save(token); err != nil {
		return nil, err
	}
	a.logger.Info("credentials stored",
		logging.String(logging.FieldEventType, "auth_stored"),
		logging.String("token_path", a.store.Path()),
	)
	return token, nil
}

// Status describes the stored credentials.
type Status struct {
	TokenPath       string
	Present         bool
	HasRefreshToken bool
	Expiry          time.Time
}

// Status reports what is stored without contacting Google.
func (a *Authorizer) Status() (Status, error) {
	status := Status{TokenPath: a.store.Path()}
	token, err := a.store.Load()
	if errors.Is(err, ErrNoToken) {
		return status, nil
	}
	if err != nil {
		return status, err
	}
	status.Present = true
	status.HasRefreshToken = token.RefreshToken != ""
	status.Expiry = token.Expiry
	return status, nil
}

// ClearCredentials removes the stored token.
func (a *Authorizer) ClearCredentials() error {
	return a.store.Clear()
}

func (a *Authorizer) oauthConfig(redirect string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.clientID,
		ClientSecret: a.clientSecret,
		Endpoint:     a.endpoint,
		RedirectURL:  redirect,
		Scopes:       a.scopes,
	}
}

func (a *Authorizer) redirectURL(port int) string {
	return fmt.Sprintf("http://%s:%d/", callbackHost, port)
}

type callbackResult struct {
	code string
	err  error
}

// callbackHandler answers the OAuth redirect. Requests without a code or
// error (favicon probes and the like) get a 404 and are otherwise ignored.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		code := query.Get("code")
		denied := query.Get("error")
		if code == "" && denied == "" {
			http.NotFound(w, r)
			return
		}
		if query.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}

		result := callbackResult{code: code}
		if denied != "" {
			result = callbackResult{err: fmt.Errorf("authorization denied: %s", denied)}
			http.Error(w, "Authorization was denied. You can close this tab.", http.StatusForbidden)
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, successPage)
		}
		select {
		case results <- result:
		default:
		}
	})
}

type persistingSource struct {
	base   oauth2.TokenSource
	store  *TokenStore
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	token, err := p.base.Token()
	if err != nil {
		return nil, classifyRefresh(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if token.AccessToken != p.last {
		p.last = token.AccessToken
		if err := p.store.Save(token); err != nil {
			p.logger.Warn("failed to persist refreshed token",
				logging.String(logging.FieldEventType, "token_persist_failed"),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the next run refreshes again"),
			)
		}
	}
	return token, nil
}

// classifyRefresh marks rejected refresh tokens permanent so Drive requests
// do not retry forever on revoked credentials.
func classifyRefresh(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) && retrieve.Response != nil &&
		retrieve.Response.StatusCode >= 400 && retrieve.Response.StatusCode < 500 {
		return services.Wrap(services.ErrPermanent, "auth", "refresh token", "run 'folio auth login'", err)
	}
	return services.Wrap(services.ErrTransient, "auth", "refresh token", "", err)
}

func openSystemBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
