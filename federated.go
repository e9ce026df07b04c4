package admin

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// FederatedVerifier validates provider-issued ID tokens against the
// provider's published JWK set and extracts the identity the core maps onto
// an account. The provider already authenticated the user; this only proves
// the token really came from the provider and the email is verified.
type FederatedVerifier struct {
	provider string
	jwks     *keyfunc.JWKS
	issuer   string
	audience string
	logger   Logger
}

// FederatedVerifierConfig names the provider and its JWKS endpoint.
type FederatedVerifierConfig struct {
	Provider string
	JWKSURL  string
	Issuer   string
	Audience string
	Logger   Logger
}

// NewFederatedVerifier fetches the provider JWK set and keeps it refreshed
// in the background.
func NewFederatedVerifier(cfg FederatedVerifierConfig) (*FederatedVerifier, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("failed to do a background refresh of JWK set", "provider", cfg.Provider, "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to fetch provider JWK set").
			WithMetadata(map[string]any{"provider": cfg.Provider})
	}

	return &FederatedVerifier{
		provider: cfg.Provider,
		jwks:     jwks,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		logger:   logger,
	}, nil
}

// Verify validates a provider ID token and returns the federated identity.
// Tokens without a verified email are rejected.
func (v *FederatedVerifier) Verify(rawToken string) (FederatedIdentity, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if v.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, v.jwks.Keyfunc, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return FederatedIdentity{}, ErrTokenExpired
		}
		return FederatedIdentity{}, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	if !token.Valid {
		return FederatedIdentity{}, ErrTokenMalformed
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return FederatedIdentity{}, errors.New("provider token is missing the email claim", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	if verified, ok := claims["email_verified"].(bool); ok && !verified {
		return FederatedIdentity{}, errors.New("provider email is not verified", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}

	name, _ := claims["name"].(string)
	subject, _ := claims["sub"].(string)

	return FederatedIdentity{
		Email:      email,
		Name:       name,
		Provider:   v.provider,
		ProviderID: subject,
	}, nil
}

// Close stops the background JWKS refresh.
func (v *FederatedVerifier) Close() {
	v.jwks.EndBackground()
}
