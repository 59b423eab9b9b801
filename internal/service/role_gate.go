package service

import (
	"path"
	"strings"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// Client routes the gate knows about.
const (
	RouteDashboard = "/dashboard"
	RouteProfile   = "/profile"
	RouteTutors    = "/tutors"
	RouteAdmin     = "/admin"
	RouteEarnings  = "/earnings"
	RouteLogin     = "/login"
)

// RoleGate decides whether a role may open a client route.
type RoleGate struct{}

// NewRoleGate constructs RoleGate.
func NewRoleGate() *RoleGate {
	return &RoleGate{}
}

// Resolve returns where a user with role should land when navigating to rawPath.
func (g *RoleGate) Resolve(role models.Role, rawPath string) models.NavigationDecision {
	p := normalizeRoute(rawPath)
	allow := models.NavigationDecision{Path: p, Allowed: true}

	switch role {
	case models.RoleAdmin:
		return allow
	case models.RoleTutor:
		if underRoute(p, RouteTutors) {
			return redirect(p, RouteProfile, "Tutors manage their own profile instead of browsing tutors.")
		}
		if underRoute(p, RouteAdmin) {
			return redirect(p, RouteDashboard, "Admin pages require the admin role.")
		}
		return allow
	case models.RoleStudent:
		if underRoute(p, RouteAdmin) {
			return redirect(p, RouteDashboard, "Admin pages require the admin role.")
		}
		if underRoute(p, RouteEarnings) {
			return redirect(p, RouteDashboard, "Earnings are only available to tutors.")
		}
		return allow
	default:
		return redirect(p, RouteLogin, "Sign in to continue.")
	}
}

func redirect(from, to, notice string) models.NavigationDecision {
	return models.NavigationDecision{Path: from, Allowed: false, RedirectTo: to, Notice: notice}
}

func underRoute(p, route string) bool {
	return p == route || strings.HasPrefix(p, route+"/")
}

func normalizeRoute(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return strings.ToLower(path.Clean(raw))
}
