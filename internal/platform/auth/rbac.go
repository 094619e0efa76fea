package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Permission names an operation the core guards.
type Permission string

const (
	PermCreateAppointment    Permission = "appointment:create"
	PermApproveAppointment   Permission = "appointment:approve"
	PermRejectAppointment    Permission = "appointment:reject"
	PermCompleteAppointment  Permission = "appointment:complete"
	PermCancelAppointment    Permission = "appointment:cancel"
	PermAssignProvider       Permission = "appointment:assign_provider"
	PermViewOwnAppointments  Permission = "appointment:view_own"
	PermViewPendingReview    Permission = "appointment:view_pending"
	PermViewProviderQueue    Permission = "appointment:view_provider_queue"
	PermSearchAppointments   Permission = "appointment:search"
	PermManageSchedules      Permission = "schedule:manage"
	PermViewUpcomingSchedule Permission = "schedule:view_upcoming"
	PermSubmitFeedback       Permission = "feedback:submit"
	PermViewProviderFeedback Permission = "feedback:view_provider"
	PermListProviders        Permission = "user:list_providers"
	PermViewAnalytics        Permission = "dashboard:analytics"
)

// permissions is the single (role, operation) matrix. Admin is listed
// explicitly; there is no implicit bypass.
var permissions = map[Permission][]Role{
	PermCreateAppointment:    {RolePatient},
	PermApproveAppointment:   {RoleHealthOfficer, RoleAdmin},
	PermRejectAppointment:    {RoleHealthOfficer, RoleAdmin},
	PermCompleteAppointment:  {RoleServiceProvider, RoleAdmin},
	PermCancelAppointment:    {RolePatient, RoleAdmin},
	PermAssignProvider:       {RoleHealthOfficer, RoleAdmin},
	PermViewOwnAppointments:  {RolePatient},
	PermViewPendingReview:    {RoleHealthOfficer, RoleAdmin},
	PermViewProviderQueue:    {RoleServiceProvider, RoleAdmin},
	PermSearchAppointments:   {RoleAdmin},
	PermManageSchedules:      {RoleHealthOfficer, RoleAdmin},
	PermViewUpcomingSchedule: {RoleServiceProvider, RoleHealthOfficer, RoleAdmin},
	PermSubmitFeedback:       {RolePatient},
	PermViewProviderFeedback: {RoleServiceProvider, RoleHealthOfficer, RoleAdmin},
	PermListProviders:        {RoleHealthOfficer, RoleAdmin},
	PermViewAnalytics:        {RoleAdmin},
}

// Permits reports whether role may perform p. Unknown permissions are denied.
func Permits(role Role, p Permission) bool {
	for _, r := range permissions[p] {
		if r == role {
			return true
		}
	}
	return false
}

// RequirePermission rejects callers whose role is not granted p.
func RequirePermission(p Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !Permits(actor.Role, p) {
				return echo.NewHTTPError(http.StatusForbidden, "not permitted: "+string(p))
			}
			return next(c)
		}
	}
}

// RequireRole returns middleware that checks the caller has one of roles.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, has := range RolesFromContext(c.Request().Context()) {
				for _, required := range names {
					if has == required {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				"required role: "+strings.Join(names, " or "))
		}
	}
}
