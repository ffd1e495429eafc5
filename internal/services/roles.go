package services

import "github.com/platformbuilds/mirador-dashboards/internal/models"

// CheckRoles maps the caller's roles to dashboard access levels. Each level
// implies the ones below it: admin, then manager, then user.
func CheckRoles(id models.Identity) models.Roles {
	r := models.Roles{IsAdmin: id.HasRole(models.RoleAdmin)}
	r.IsManager = r.IsAdmin || id.HasRole(models.RoleManager)
	r.IsUser = r.IsManager || id.HasRole(models.RoleUser)
	return r
}
