package admin

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RegisterAdminRoutes mounts the administration JSON API. Every route
// expects the gate middleware to have already authenticated the request and
// stored claims in locals. The controller itself requires at least the admin
// role before touching any repository, and mutations re-check the full
// permission matrix in the lifecycle manager, so mounting these behind the
// wrong prefix fails closed.
func RegisterAdminRoutes[T any](app router.Router[T], opts ...AdminControllerOption) {
	controller := NewAdminController(opts...)

	app.Get("/users", controller.ListUsers).SetName("admin.users.list")
	app.Get("/users/:id", controller.ShowUser).SetName("admin.users.show")
	app.Post("/users/:id/status", controller.UpdateUserStatus).SetName("admin.users.status")
	app.Delete("/users/:id", controller.DeleteUser).SetName("admin.users.delete")
	app.Post("/users/:id/promote", controller.PromoteUser).SetName("admin.users.promote")
	app.Post("/users/demote", controller.DemoteUser).SetName("admin.users.demote")

	app.Get("/audit-logs", controller.ListAuditLogs).SetName("admin.audit.list")

	app.Post("/invitations", controller.CreateInvitation).SetName("admin.invitations.create")
	app.Get("/invitations", controller.ListInvitations).SetName("admin.invitations.list")
	app.Delete("/invitations/:id", controller.RevokeInvitation).SetName("admin.invitations.revoke")
}

type AdminController struct {
	Logger     Logger
	Repo       RepositoryManager
	Lifecycle  LifecycleManager
	ContextKey string
}

type AdminControllerOption func(*AdminController) *AdminController

func NewAdminController(opts ...AdminControllerOption) *AdminController {
	c := &AdminController{
		Logger:     defLogger{},
		ContextKey: "session",
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in admin controller...")
	}

	if c.Lifecycle == nil {
		panic("Missing LifecycleManager in admin controller...")
	}

	return c
}

// actor resolves the acting administrator's email from the authenticated
// claims. Routes bail with 401 when the gate did not populate them and with
// 403 when the principal is not an administrator.
func (a *AdminController) actor(ctx router.Context) (string, error) {
	claims, ok := GetRouterClaims(ctx, a.ContextKey)
	if !ok {
		return "", ErrNotAuthenticated
	}
	return requireAdmin(claims)
}

// requireAdmin admits only admin and super admin principals. Read routes
// never pass through the lifecycle manager's permission matrix, so this is
// the check that keeps account listings, audit logs, and invitations away
// from regular users.
func requireAdmin(claims AuthClaims) (string, error) {
	if claims == nil || claims.Email() == "" {
		return "", ErrNotAuthenticated
	}
	if !claims.IsAtLeast(string(RoleAdmin)) {
		return "", ErrForbidden
	}
	return claims.Email(), nil
}

func (a *AdminController) respondErr(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Error("Admin API error",
		"path", ctx.Path(),
		"error", richErr.Message,
		"category", richErr.Category,
	)

	return ctx.JSON(statusFromError(richErr), map[string]string{
		"error": richErr.Message,
	})
}

func (a *AdminController) targetID(ctx router.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CategoryValidation, "malformed account id").
			WithCode(errors.CodeBadRequest)
	}
	return id, nil
}

func (a *AdminController) ListUsers(ctx router.Context) error {
	if _, err := a.actor(ctx); err != nil {
		return a.respondErr(ctx, err)
	}

	filters := AccountFilters{
		Role:   Role(ctx.Query("role", "")),
		Status: AccountStatus(ctx.Query("status", "")),
		Search: ctx.Query("search", ""),
		Page:   ctx.QueryInt("page", 1),
		Limit:  ctx.QueryInt("limit", 25),
	}

	records, total, err := a.Repo.Accounts().List(ctx.Context(), filters)
	if err != nil {
		return a.respondErr(ctx, err)
	}

	items := make([]*Account, 0, len(records))
	for _, record := range records {
		items = append(items, record.PublicView())
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"items": items,
		"total": total,
		"page":  filters.Page,
		"limit": filters.Limit,
	})
}

func (a *AdminController) ShowUser(ctx router.Context) error {
	if _, err := a.actor(ctx); err != nil {
		return a.respondErr(ctx, err)
	}

	id, err := a.targetID(ctx)
	if err != nil {
		return a.respondErr(ctx, err)
	}

	record, err := a.Repo.Accounts().GetByID(ctx.Context(), id)
	if err != nil {
		return a.respondErr(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, record.PublicView())
}

const (
	statusActionSuspend    = "suspend"
	statusActionBlock      = "block"
	statusActionReactivate = "reactivate"
	statusActionRestore    = "restore"
)

// UpdateStatusPayload drives the status transitions on an account. Reason is
// mandatory for the punitive actions and optional for restore; duration is
// in days and only meaningful when suspending.
type UpdateStatusPayload struct {
	Action   string `json:"action"`
	Reason   string `json:"reason"`
	Duration *int   `json:"duration"`
}

func (r UpdateStatusPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Action,
			validation.Required,
			validation.In(
				statusActionSuspend,
				statusActionBlock,
				statusActionReactivate,
				statusActionRestore,
			),
		),
		// Reason requirements depend on the action; the lifecycle manager
		// enforces them per transition.
		validation.Field(
			&r.Reason,
			validation.Length(0, 500),
		),
		validation.Field(
			&r.Duration,
			validation.Min(1),
		),
	)
}

func (a *AdminController) UpdateUserStatus(ctx router.Context) error {
	actor, err := a.actor(ctx)
	if err != nil {
		return a.respondErr(ctx, err)
	}

	id, err := a.targetID(ctx)
	if err != nil {
		return a.respondErr(ctx, err)
	}

	payload := new(UpdateStatusPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.respondErr(ctx, errors.Wrap(err, errors.CategoryBadInput, "failed to parse payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return a.respondErr(ctx, errors.Wrap(err, errors.CategoryValidation, "invalid payload").
			WithCode(errors.CodeBadRequest))
	}

	ip := ClientIP(ctx)

	var record *Account
	switch payload.Action {
	case statusActionSuspend:
		record, err = a.Lifecycle.Suspend(ctx.Context(), SuspendRequest{
			Actor:    actor,
			TargetID: id,
			Reason:   payload.Reason,
			Duration: payload.Duration,
			IP:       ip,
		})
	case statusActionBlock:
		record, err = a.Lifecycle.Block(ctx.Context(), BlockRequest{
			Actor:    actor,
			TargetID: id,
			Reason:   payload.Reason,
			IP:       ip,
		})
	case statusActionReactivate:
		record, err = a.Lifecycle.Reactivate(ctx.Context(), ReactivateRequest{
			Actor:    actor,
			TargetID: id,
			IP:       ip,
		})
	case statusActionRestore:
		record, err = a.Lifecycle.Restore(ctx.Context(), RestoreRequest{
			Actor:    actor,
			TargetID: id,
			Reason:   payload.Reason,
			IP:       ip,
		})
	}

	if err != nil {
		return a.respondErr(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, record.PublicView())
}

// DeleteUserPayload carries the mandatory deletion reason.
type DeleteUserPayload struct {
	Reason string `json:"reason"`
}

func (r DeleteUserPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 500)),
	)
}

func (a *AdminController) DeleteUser(ctx router.Context) error {
	actor, err := a.actor(ctx)
	if err != nil {
		return a.respondErr(ctx, err)
	}

	id, err := a.targetID(ctx)
	if err != nil {
		return a.respondErr(ctx, err)
	}

	payload := new(DeleteUserPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.respondErr(ctx, errors.Wrap(err, errors.CategoryBadInput, "failed to parse payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return a.respondErr(ctx, errors.Wrap(err, errors.CategoryValidation, "deletion requires a reason").
			WithCode(errors.CodeBadRequest))
	}

	record, err := a.Lifecycle.Delete(ctx.Context(), DeleteRequest{
		Actor:    actor,
		TargetID: id,
		Reason:   payload.Reason,
		IP:       ClientIP(ctx),
	})
	if err != nil {
		return a.respondErr(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, record.PublicView())
}

// PromoteUserPayload names the role the target is elevated to.
type PromoteUserPayload struct {
	NewRole Role `json:"new_role"`
}

func (r PromoteUserPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.NewRole,
			validation.Required,
			validation.In(RoleAdmin, RoleSuperAdmin),
		),
	)
}

func (a *AdminController) PromoteUser(ctx router.Context) error {
	actor, err := a.actor(ctx)
	if err != nil {
		return a.respondErr(ctx, err)
	}

	id, err := a.targetID(ctx)
	if err != nil {
		return a.respondErr(ctx, err)
	}

	payload := new(PromoteUserPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.respondErr(ctx, errors.Wrap(err, errors.CategoryBadInput, "failed to parse payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return a.respondErr(ctx, errors.Wrap(err, errors.CategoryValidation, "invalid payload").
			WithCode(errors.CodeBadRequest))
	}

	record, err := a.Lifecycle.Promote(ctx.Context(), PromoteRequest{
		Actor:    actor,
		TargetID: id,
		NewRole:  payload.NewRole,
		IP:       ClientIP(ctx),
	})
	if err != nil {
		return a.respondErr(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, record.PublicView())
}

// DemoteUserPayload identifies the demotion target by email.
type DemoteUserPayload struct {
	Email string `json:"email"`
}

func (r DemoteUserPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

func (a *AdminController) DemoteUser(ctx router.Context) error {
	actor, err := a.actor(ctx)
	if err != nil {
		return a.respondErr(ctx, err)
	}

	payload := new(DemoteUserPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.respondErr(ctx, errors.Wrap(err, errors.CategoryBadInput, "failed to parse payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return a.respondErr(ctx, errors.Wrap(err, errors.CategoryValidation, "invalid payload").
			WithCode(errors.CodeBadRequest))
	}

	record, err := a.Lifecycle.Demote(ctx.Context(), DemoteRequest{
		Actor:       actor,
		TargetEmail: payload.Email,
		IP:          ClientIP(ctx),
	})
	if err != nil {
		return a.respondErr(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, record.PublicView())
}

func (a *AdminController) ListAuditLogs(ctx router.Context) error {
	if _, err := a.actor(ctx); err != nil {
		return a.respondErr(ctx, err)
	}

	filters := AuditFilters{
		Action: AuditAction(ctx.Query("action", "")),
		Search: ctx.Query("search", ""),
		Page:   ctx.QueryInt("page", 1),
		Limit:  ctx.QueryInt("limit", 100),
	}

	if since := ctx.Query("since", ""); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return a.respondErr(ctx, errors.Wrap(err, errors.CategoryValidation, "since must be RFC3339").
				WithCode(errors.CodeBadRequest))
		}
		filters.Since = &t
	}

	if until := ctx.Query("until", ""); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return a.respondErr(ctx, errors.Wrap(err, errors.CategoryValidation, "until must be RFC3339").
				WithCode(errors.CodeBadRequest))
		}
		filters.Until = &t
	}

	entries, total, err := a.Repo.AuditLogs().Query(ctx.Context(), filters)
	if err != nil {
		return a.respondErr(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"items": entries,
		"total": total,
		"page":  filters.Page,
		"limit": filters.Limit,
	})
}

// CreateInvitationPayload pre-authorizes an admin role for an email.
type CreateInvitationPayload struct {
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	TTLHours int    `json:"ttl_hours"`
}

func (r CreateInvitationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Role, validation.In(RoleAdmin, RoleSuperAdmin)),
		validation.Field(&r.TTLHours, validation.Min(0)),
	)
}

func (a *AdminController) CreateInvitation(ctx router.Context) error {
	actor, err := a.actor(ctx)
	if err != nil {
		return a.respondErr(ctx, err)
	}

	payload := new(CreateInvitationPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.respondErr(ctx, errors.Wrap(err, errors.CategoryBadInput, "failed to parse payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return a.respondErr(ctx, errors.Wrap(err, errors.CategoryValidation, "invalid payload").
			WithCode(errors.CodeBadRequest))
	}

	var created *Invitation
	invite := NewInviteAdminHandler(a.Repo.Accounts(), a.Repo.Invitations(), a.Repo.AuditLogs())
	err = invite.Execute(ctx.Context(), InviteAdminMessage{
		InviterEmail: actor,
		InviteeEmail: payload.Email,
		Role:         payload.Role,
		TTL:          time.Duration(payload.TTLHours) * time.Hour,
		IPAddress:    ClientIP(ctx),
		OnResponse:   func(inv *Invitation) { created = inv },
	})
	if err != nil {
		return a.respondErr(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, created)
}

func (a *AdminController) ListInvitations(ctx router.Context) error {
	if _, err := a.actor(ctx); err != nil {
		return a.respondErr(ctx, err)
	}

	records, err := a.Repo.Invitations().ListPending(ctx.Context())
	if err != nil {
		return a.respondErr(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"items": records,
		"total": len(records),
	})
}

func (a *AdminController) RevokeInvitation(ctx router.Context) error {
	actor, err := a.actor(ctx)
	if err != nil {
		return a.respondErr(ctx, err)
	}

	var revoked *Invitation
	revoke := NewRevokeInvitationHandler(a.Repo.Accounts(), a.Repo.Invitations(), a.Repo.AuditLogs())
	err = revoke.Execute(ctx.Context(), RevokeInvitationMessage{
		ActorEmail:   actor,
		InvitationID: ctx.Param("id"),
		IPAddress:    ClientIP(ctx),
		OnResponse:   func(inv *Invitation) { revoked = inv },
	})
	if err != nil {
		return a.respondErr(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, revoked)
}
