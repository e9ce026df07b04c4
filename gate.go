package admin

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-router"
)

// PathClass partitions the request space for the gate's decision table.
type PathClass int

const (
	PathPublic PathClass = iota
	PathPrivate
	PathRoot
)

// GateAction is what the gate decided to do with a request.
type GateAction int

const (
	GateAllow GateAction = iota
	GateRedirect
)

// GateDecision is the outcome of the pure decision core: either let the
// request through or send the client elsewhere.
type GateDecision struct {
	Action   GateAction
	Location string
}

func (d GateDecision) String() string {
	if d.Action == GateAllow {
		return "allow"
	}
	return "redirect"
}

// Gate is the single checkpoint every request passes before protected
// functionality. It touches the session registry on authenticated requests,
// so passing through also refreshes activity. Malformed, expired, and
// revoked sessions all look identical to "no session".
type Gate struct {
	cfg       Config
	registry  SessionRegistry
	validator TokenValidator
	resolver  *RedirectResolver
	logger    Logger
	metrics   *Metrics
}

// GateOption customizes gate construction.
type GateOption func(*Gate)

// WithGateLogger overrides the default logger.
func WithGateLogger(logger Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGateMetrics attaches decision counters.
func WithGateMetrics(m *Metrics) GateOption {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithGateValidator swaps the token validator, e.g. for a
// MultiTokenValidator that also accepts federated tokens.
func WithGateValidator(v TokenValidator) GateOption {
	return func(g *Gate) {
		if v != nil {
			g.validator = v
		}
	}
}

// NewGate builds the checkpoint over the registry and token service.
func NewGate(cfg Config, registry SessionRegistry, tokenService TokenService, opts ...GateOption) *Gate {
	g := &Gate{
		cfg:       cfg,
		registry:  registry,
		validator: tokenService,
		resolver:  NewRedirectResolver(cfg),
		logger:    defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Classify maps a path onto the decision table's three disjoint classes by
// prefix match. Explicit public prefixes win over private ones, so an
// operator can carve an open subtree (a health check, say) out of a private
// prefix. Paths matching neither list are public.
func (g *Gate) Classify(path string) PathClass {
	if path == "" || path == "/" {
		return PathRoot
	}

	for _, prefix := range g.cfg.GetPublicPaths() {
		if matchesPrefix(path, prefix) {
			return PathPublic
		}
	}

	for _, prefix := range g.cfg.GetPrivatePaths() {
		if matchesPrefix(path, prefix) {
			return PathPrivate
		}
	}

	return PathPublic
}

// Decide is the side-effect-free decision core. The caller has already
// settled whether the principal counts as authenticated for this request.
func (g *Gate) Decide(path string, authenticated bool, role Role, callbackURL string) GateDecision {
	class := g.Classify(path)

	switch class {
	case PathRoot:
		if !authenticated {
			return GateDecision{Action: GateRedirect, Location: g.cfg.GetLoginPath()}
		}
		return GateDecision{Action: GateRedirect, Location: g.resolver.Resolve(role, callbackURL)}

	case PathPrivate:
		if !authenticated {
			return GateDecision{Action: GateRedirect, Location: loginWithCallback(g.cfg.GetLoginPath(), path)}
		}
		return GateDecision{Action: GateAllow}

	default:
		// Signed-in users have no business on the login or register pages.
		if authenticated && g.isAuthPage(path) {
			return GateDecision{Action: GateRedirect, Location: g.resolver.Resolve(role, callbackURL)}
		}
		return GateDecision{Action: GateAllow}
	}
}

// Middleware enforces the decision table per request. Authenticated
// requests touch the registry; a failed touch demotes the principal to
// unauthenticated for the remainder of the request.
func (g *Gate) Middleware() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			path := ctx.Path()

			authenticated := false
			var role Role

			if claims := g.authenticate(ctx); claims != nil {
				authenticated = true
				role = Role(claims.Role())
				ctx.Locals(g.cfg.GetContextKey(), claims)
			}

			decision := g.Decide(path, authenticated, role, ctx.Query("callbackUrl", ""))

			if g.metrics != nil {
				g.metrics.GateDecision(decision.String())
			}

			if decision.Action == GateRedirect {
				g.logger.Debug("gate redirect", "path", path, "to", decision.Location, "authenticated", authenticated)
				return ctx.Redirect(decision.Location, http.StatusFound)
			}

			return ctx.Next()
		}
	}
}

// authenticate resolves the request to claims with a live registry session,
// or nil. Every failure mode collapses to nil so callers cannot tell a
// malformed token from an expired or revoked session.
func (g *Gate) authenticate(ctx router.Context) AuthClaims {
	raw := g.extractToken(ctx)
	if raw == "" {
		return nil
	}

	claims, err := g.validator.Validate(raw)
	if err != nil {
		g.logger.Debug("gate token rejected", "error", err)
		return nil
	}

	ok, err := g.registry.Touch(ctx.Context(), claims.SessionID())
	if err != nil {
		g.logger.Error("gate session touch failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	return claims
}

func (g *Gate) extractToken(ctx router.Context) string {
	if cookie := ctx.Cookies(g.cfg.GetContextKey()); cookie != "" {
		return cookie
	}

	header := ctx.GetString(router.HeaderAuthorization, "")
	const scheme = "Bearer"
	if len(header) > len(scheme)+1 && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}

	return ""
}

func (g *Gate) isAuthPage(path string) bool {
	return matchesPrefix(path, g.cfg.GetLoginPath()) || matchesPrefix(path, g.cfg.GetRegisterPath())
}

func matchesPrefix(path, prefix string) bool {
	if prefix == "" {
		return false
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}

func loginWithCallback(loginPath, path string) string {
	return loginPath + "?callbackUrl=" + url.QueryEscape(path)
}
