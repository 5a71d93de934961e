package elements

import "strings"

// AdminPermission grants every permission.
const AdminPermission = "*"

// PermissionSet is the set of permissions a user holds. Permission names
// are matched case-insensitively. It satisfies templating.Permissions.
type PermissionSet map[string]struct{}

// NewPermissionSet returns a set holding perms.
func NewPermissionSet(perms ...string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[strings.ToLower(p)] = struct{}{}
	}
	return set
}

// Can reports whether the set holds permission or the admin permission.
func (s PermissionSet) Can(permission string) bool {
	if _, ok := s[AdminPermission]; ok {
		return true
	}
	_, ok := s[strings.ToLower(permission)]
	return ok
}
