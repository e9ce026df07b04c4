package admin

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// LoginRequest payload
type LoginRequest struct {
	Identifier  string `form:"identifier" json:"identifier"`
	Password    string `form:"password" json:"password"`
	CallbackURL string `form:"callbackUrl" json:"callbackUrl"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// RouteAuthenticator glues the sign-in flows to HTTP: session cookie
// handling, post-login redirects, and category-aware error responses.
type RouteAuthenticator struct {
	auth           *Auther
	cfg            Config
	resolver       *RedirectResolver
	cookieDuration time.Duration
	Logger         Logger
	ErrorHandler   func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther *Auther, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:            cfg,
		auth:           auther,
		resolver:       NewRedirectResolver(cfg),
		Logger:         defLogger{},
		cookieDuration: cookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

// Login authenticates the payload, opens a session, and sets the cookie.
// On success the response redirects through the role-redirect resolver.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginRequest) error {
	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryValidation, "invalid login payload").
			WithCode(errors.CodeBadRequest))
	}

	token, err := a.auth.Login(ctx.Context(), payload.Identifier, payload.Password, ClientIP(ctx))
	if err != nil {
		a.Logger.Error("Login error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	a.setCookieToken(ctx, token, a.cookieDuration)

	claims, err := a.auth.SessionFromToken(token)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	destination := a.resolver.Resolve(Role(claims.Role()), payload.CallbackURL)
	return ctx.Redirect(destination, fiber.StatusSeeOther)
}

// Logout tears down the registry session and expires the cookie.
func (a *RouteAuthenticator) Logout(ctx router.Context) error {
	if raw := ctx.Cookies(a.cfg.GetContextKey()); raw != "" {
		if err := a.auth.Logout(ctx.Context(), raw); err != nil {
			a.Logger.Warn("Logout session invalidation failed", "error", err)
		}
	}

	a.cookieDel(ctx, a.cfg.GetContextKey())
	return ctx.Redirect(a.cfg.GetLoginPath(), fiber.StatusSeeOther)
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Authentication error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return c.JSON(statusFromError(richErr), map[string]string{
		"error": richErr.Message,
	})
}

// statusFromError maps the error taxonomy onto transport status codes:
// auth failures 401, permission failures 403, missing records 404, bad
// input and conflicts 4xx, everything unexpected 500.
func statusFromError(err *errors.Error) int {
	if err.Code > 0 {
		return err.Code
	}

	switch err.Category {
	case errors.CategoryAuth:
		return fiber.StatusUnauthorized
	case errors.CategoryAuthz:
		return fiber.StatusForbidden
	case errors.CategoryNotFound:
		return fiber.StatusNotFound
	case errors.CategoryConflict:
		return fiber.StatusConflict
	case errors.CategoryValidation, errors.CategoryBadInput:
		return fiber.StatusBadRequest
	case errors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}
