package auth

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeploy/internal/shared"
	"golang.org/x/crypto/pkcs12"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

const (
	// AndroidPublisherScope is requested for every token.
	AndroidPublisherScope = "https://www.googleapis.com/auth/androidpublisher"

	// p12Password is the fixed password Google uses for every generated .p12 key.
	p12Password = "notasecret"

	defaultFetchTimeout = 30 * time.Second
)

// ProviderOpts configures a [Provider].
type ProviderOpts struct {
	HTTPClient   *http.Client  // used for key downloads and the token exchange
	TokenURL     string        // overrides the token endpoint; empty keeps the key's own or Google's
	FetchTimeout time.Duration // bound on remote key downloads
	Logger       *log.Logger
}

// Provider exchanges service-account keys for bearer tokens.
type Provider struct {
	httpClient   *http.Client
	tokenURL     string
	fetchTimeout time.Duration
	logger       *log.Logger
}

// NewProvider creates a new [Provider].
func NewProvider(opts ProviderOpts) *Provider {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	return &Provider{
		httpClient:   opts.HTTPClient,
		tokenURL:     opts.TokenURL,
		fetchTimeout: opts.FetchTimeout,
		logger:       opts.Logger,
	}
}

// Authenticate exchanges key for an access token scoped to the Android Publisher API.
//
// JSON keys carry their own client email; when email is also given the two must match.
// PKCS#12 keys carry no identity, so email is required for them.
func (p *Provider) Authenticate(ctx context.Context, email string, key []byte) (*oauth2.Token, error) {
	cfg, err := p.jwtConfig(email, key)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	p.logger.Debug("requesting token", "account", cfg.Email, "token_url", cfg.TokenURL)
	token, err := cfg.TokenSource(ctx).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange for %s: %v", shared.ErrAuthFailed, cfg.Email, err)
	}
	if !token.Valid() {
		return nil, fmt.Errorf("%w: token exchange for %s returned no usable token", shared.ErrAuthFailed, cfg.Email)
	}

	p.logger.Info("authenticated", "account", cfg.Email, "expires", token.Expiry.Format(time.RFC3339))
	return token, nil
}

// Client returns an [http.Client] that attaches token to every request.
//
// The token is never refreshed: once it expires requests fail with 401.
func (p *Provider) Client(ctx context.Context, token *oauth2.Token) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
}

func (p *Provider) jwtConfig(email string, key []byte) (*jwt.Config, error) {
	email = strings.TrimSpace(email)

	var (
		cfg *jwt.Config
		err error
	)
	switch DetectKeyFormat(key) {
	case KeyFormatJSON:
		cfg, err = jsonConfig(email, key)
	case KeyFormatP12:
		cfg, err = p12Config(email, key)
	default:
		err = fmt.Errorf("%w: %w: key is empty", shared.ErrAuthFailed, shared.ErrUnsupportedKey)
	}
	if err != nil {
		return nil, err
	}

	if p.tokenURL != "" {
		cfg.TokenURL = p.tokenURL
	}
	return cfg, nil
}

func jsonConfig(email string, key []byte) (*jwt.Config, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(key, &header); err != nil {
		return nil, fmt.Errorf("%w: %w: malformed JSON key: %v", shared.ErrAuthFailed, shared.ErrInvalidCredentials, err)
	}
	if header.Type != "service_account" {
		return nil, fmt.Errorf("%w: %w: expected a service_account key, got %q", shared.ErrAuthFailed, shared.ErrUnsupportedKey, header.Type)
	}

	cfg, err := google.JWTConfigFromJSON(key, AndroidPublisherScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", shared.ErrAuthFailed, shared.ErrInvalidCredentials, err)
	}

	if email != "" && !strings.EqualFold(email, cfg.Email) {
		return nil, fmt.Errorf("%w: key belongs to %s, not %s", shared.ErrAuthFailed, cfg.Email, email)
	}
	return cfg, nil
}

func p12Config(email string, key []byte) (*jwt.Config, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: %w: a service account email is required for .p12 keys", shared.ErrAuthFailed, shared.ErrMissingCredentials)
	}

	priv, _, err := pkcs12.Decode(key, p12Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: failed to decode .p12 key: %v", shared.ErrAuthFailed, shared.ErrInvalidCredentials, err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", shared.ErrAuthFailed, shared.ErrUnsupportedKey, err)
	}

	return &jwt.Config{
		Email:      email,
		PrivateKey: pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}),
		Scopes:     []string{AndroidPublisherScope},
		TokenURL:   google.JWTTokenURL,
	}, nil
}
