package authz

import (
	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/team"
)

// Decide evaluates action for member against a target division. An empty
// target means the resource carries no trade tag.
func Decide(member *team.Member, action Action, target catalog.Division) Decision {
	if member == nil || !member.IsActive {
		return Deny(ReasonNotAMember)
	}
	if !action.Valid() {
		return Deny(ReasonInsufficientAccessLevel)
	}
	if member.AccessLevel == catalog.AccessAdmin {
		return Allow
	}
	if member.AccessLevel == catalog.AccessReadOnly && action.Mutating() {
		return Deny(ReasonInsufficientAccessLevel)
	}
	if action.AdminOnly() {
		return Deny(ReasonInsufficientAccessLevel)
	}
	if action.Scoped() && member.CSIDivision != "" && target != "" && target != member.CSIDivision {
		return Deny(ReasonOutOfScope)
	}
	return Allow
}
