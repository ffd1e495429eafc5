package models

// Role names carried by an identity.
const (
	RoleUser    = "user"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// Identity is the caller of a dashboard request. UserID and CompanyID feed the
// %UID and %COMPANY filter placeholders.
type Identity struct {
	UserID    int64    `json:"user_id"`
	CompanyID int64    `json:"company_id"`
	Roles     []string `json:"roles"`
}

// HasRole reports whether the identity carries role r.
func (i Identity) HasRole(r string) bool {
	for _, x := range i.Roles {
		if x == r {
			return true
		}
	}
	return false
}

// Roles is the dashboard access level of the caller.
type Roles struct {
	IsUser    bool `json:"is_user"`
	IsManager bool `json:"is_manager"`
	IsAdmin   bool `json:"is_admin"`
}
