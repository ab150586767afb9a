// internal/app/system/authz/roles.go

// Package authz defines the coarse role tags carried on users and embedded
// in access-token claims. All tags except admin are derived state maintained
// by workflow/rolesync: a tag is present iff the user currently holds at
// least one matching responsibility.
package authz

// Role tags.
const (
	RoleAdmin                = "admin"
	RoleAreaResponsible      = "asigboAreaResponsible"
	RoleActivityResponsible  = "activityResponsible"
	RolePromotionResponsible = "promotionResponsible"
	RoleTreasurer            = "treasurer"
)

// HasRole reports whether the tag set contains role.
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the tag set contains at least one of the given
// roles.
func HasAnyRole(roles []string, wanted ...string) bool {
	for _, w := range wanted {
		if HasRole(roles, w) {
			return true
		}
	}
	return false
}
