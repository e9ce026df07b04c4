package admin

import "strings"

// RedirectResolver maps (role, callback URL) to a post-login destination.
// Pure and deterministic: no I/O, no side effects.
type RedirectResolver struct {
	loginPath        string
	registerPath     string
	adminConsolePath string
	adminPathPrefix  string
	profileURL       string
}

// NewRedirectResolver builds a resolver from the gate configuration.
func NewRedirectResolver(cfg Config) *RedirectResolver {
	return &RedirectResolver{
		loginPath:        cfg.GetLoginPath(),
		registerPath:     cfg.GetRegisterPath(),
		adminConsolePath: cfg.GetAdminConsolePath(),
		adminPathPrefix:  cfg.GetAdminPathPrefix(),
		profileURL:       cfg.GetProfileURL(),
	}
}

// Resolve returns the destination path for a principal with the given role.
// A callback URL is honored only when it is a safe relative path that is not
// the login page, the register page, or the bare root; admin roles
// additionally require an admin-prefixed callback. Otherwise the role
// dispatches: admins to the console, users to the profile, unknown roles
// back to login.
func (r *RedirectResolver) Resolve(role Role, callbackURL string) string {
	if r.honorableCallback(role, callbackURL) {
		return callbackURL
	}

	switch role {
	case RoleAdmin, RoleSuperAdmin:
		return r.adminConsolePath
	case RoleUser:
		return r.profileURL
	default:
		return r.loginPath
	}
}

func (r *RedirectResolver) honorableCallback(role Role, callbackURL string) bool {
	if callbackURL == "" || callbackURL == "/" {
		return false
	}

	// Absolute and scheme-relative URLs are untrusted input: honoring them
	// would be an open redirect.
	if !isSafeRelativePath(callbackURL) {
		return false
	}

	if strings.HasPrefix(callbackURL, r.loginPath) || strings.HasPrefix(callbackURL, r.registerPath) {
		return false
	}

	if role == RoleAdmin || role == RoleSuperAdmin {
		return strings.HasPrefix(callbackURL, r.adminPathPrefix+"/") || callbackURL == r.adminPathPrefix
	}

	return true
}

// isSafeRelativePath accepts only same-origin relative paths: a single
// leading slash, no scheme, no backslash trickery.
func isSafeRelativePath(p string) bool {
	if !strings.HasPrefix(p, "/") {
		return false
	}
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return false
	}
	if strings.Contains(p, "://") {
		return false
	}
	return true
}
