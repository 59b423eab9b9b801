package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

func TestRoleGateResolve(t *testing.T) {
	gate := NewRoleGate()

	cases := []struct {
		name     string
		role     models.Role
		path     string
		allowed  bool
		redirect string
	}{
		{"tutor browsing tutors goes to profile", models.RoleTutor, "/tutors", false, RouteProfile},
		{"tutor on tutor detail goes to profile", models.RoleTutor, "/tutors/abc?tab=reviews", false, RouteProfile},
		{"tutor on dashboard", models.RoleTutor, "/dashboard", true, ""},
		{"tutor on earnings", models.RoleTutor, "/earnings", true, ""},
		{"tutor on admin", models.RoleTutor, "/admin/users", false, RouteDashboard},
		{"student browsing tutors", models.RoleStudent, "/tutors", true, ""},
		{"student on admin", models.RoleStudent, "/ADMIN", false, RouteDashboard},
		{"student on earnings", models.RoleStudent, "/earnings", false, RouteDashboard},
		{"prefix is not a route", models.RoleStudent, "/administrivia", true, ""},
		{"admin anywhere", models.RoleAdmin, "/admin/certificates", true, ""},
		{"admin browsing tutors", models.RoleAdmin, "tutors", true, ""},
		{"unknown role", models.Role("ghost"), "/dashboard", false, RouteLogin},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := gate.Resolve(tc.role, tc.path)
			assert.Equal(t, tc.allowed, decision.Allowed)
			assert.Equal(t, tc.redirect, decision.RedirectTo)
			if !tc.allowed {
				assert.NotEmpty(t, decision.Notice)
			}
		})
	}
}
