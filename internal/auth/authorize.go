package auth

import (
	"fmt"

	"github.com/sakif/quran-notes/internal/apperror"
	"github.com/sakif/quran-notes/internal/model"
)

// Authorize reports whether actor may perform an operation that requires the
// given role.
//
// THE SINGLE RULE:
// Roles are ordinal (public=0, user=1, ulama=2, admin=3). An actor passes iff
// its rank is at least the required rank AND its account is approved. Admin
// passes every check simply because 3 >= anything; there is no separate
// "if admin" shortcut anywhere in the code base.
//
// An unapproved account is treated as holding no role at all, so it fails
// even a "public" requirement. An unknown role string has rank -1 and fails
// too.
func Authorize(actor model.Actor, required model.Role) bool {
	if !actor.Approved {
		return false
	}
	rank := actor.Role.Rank()
	if rank < 0 || !required.Valid() {
		return false
	}
	return rank >= required.Rank()
}

// Require is Authorize for service code: it returns an Unauthorized error
// instead of false so the caller can return it unchanged.
func Require(actor model.Actor, required model.Role) error {
	if Authorize(actor, required) {
		return nil
	}
	if !actor.Approved {
		return apperror.Unauthorized("account is awaiting approval")
	}
	return apperror.Unauthorized(fmt.Sprintf("role %q is required", required))
}
