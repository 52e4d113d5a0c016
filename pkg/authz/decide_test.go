package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/sitepass/pkg/access"
	"github.com/platinummonkey/sitepass/pkg/catalog"
	"github.com/platinummonkey/sitepass/pkg/team"
)

func member(level catalog.AccessLevel, division catalog.Division) *team.Member {
	return &team.Member{
		ID:          "m1",
		ProjectID:   "p1",
		UserID:      "u1",
		Role:        catalog.RoleSubcontractor,
		AccessLevel: level,
		CSIDivision: division,
		IsActive:    true,
	}
}

func TestDecide(t *testing.T) {
	inactive := member(catalog.AccessAdmin, "")
	inactive.IsActive = false

	tests := []struct {
		name   string
		member *team.Member
		action Action
		target catalog.Division
		want   Decision
	}{
		{"nil member", nil, ActionViewProject, "", Deny(ReasonNotAMember)},
		{"inactive member", inactive, ActionViewProject, "", Deny(ReasonNotAMember)},
		{"read only may view", member(catalog.AccessReadOnly, ""), ActionViewDocuments, "", Allow},
		{"read only may not edit", member(catalog.AccessReadOnly, ""), ActionEditDailyLog, "", Deny(ReasonInsufficientAccessLevel)},
		{"read only checked before scope", member(catalog.AccessReadOnly, "22"), ActionEditSubmittal, "03", Deny(ReasonInsufficientAccessLevel)},
		{"standard may not manage team", member(catalog.AccessStandard, ""), ActionManageTeam, "", Deny(ReasonInsufficientAccessLevel)},
		{"standard may not view audit", member(catalog.AccessStandard, ""), ActionViewAudit, "", Deny(ReasonInsufficientAccessLevel)},
		{"admin may approve access", member(catalog.AccessAdmin, ""), ActionApproveAccess, "", Allow},
		{"plumber edits plumbing submittal", member(catalog.AccessStandard, "22"), ActionEditSubmittal, "22", Allow},
		{"plumber edits concrete submittal", member(catalog.AccessStandard, "22"), ActionEditSubmittal, "03", Deny(ReasonOutOfScope)},
		{"plumber edits untagged submittal", member(catalog.AccessStandard, "22"), ActionEditSubmittal, "", Allow},
		{"unscoped action ignores division", member(catalog.AccessStandard, "22"), ActionEditChangeOrder, "03", Allow},
		{"unrestricted member", member(catalog.AccessStandard, ""), ActionUploadFile, "03", Allow},
		{"scoped admin bypasses scope", member(catalog.AccessAdmin, "22"), ActionApproveSubmittal, "03", Allow},
		{"unknown action", member(catalog.AccessAdmin, ""), Action("demolish"), "", Deny(ReasonInsufficientAccessLevel)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.member, tt.action, tt.target))
		})
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	m := member(catalog.AccessStandard, "26")
	for _, a := range Actions() {
		first := Decide(m, a, "03")
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Decide(m, a, "03"), a)
		}
	}
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Edit_Submittal ")
	require.NoError(t, err)
	assert.Equal(t, ActionEditSubmittal, a)

	_, err = ParseAction("delete_project")
	assert.Equal(t, access.KindInvalidArgument, access.KindOf(err))

	assert.Len(t, Actions(), 12)
	assert.True(t, ActionViewAudit.AdminOnly())
	assert.False(t, ActionViewAudit.Mutating())
	assert.True(t, ActionUploadFile.Scoped())
}

func TestDecisionErr(t *testing.T) {
	assert.NoError(t, Allow.Err("op"))
	assert.Equal(t, access.KindNotAMember, access.KindOf(Deny(ReasonNotAMember).Err("op")))
	assert.Equal(t, access.KindOutOfScope, access.KindOf(Deny(ReasonOutOfScope).Err("op")))
	assert.Equal(t, access.KindInsufficientAccessLevel, access.KindOf(Deny(ReasonInsufficientAccessLevel).Err("op")))
	assert.True(t, access.IsDenial(Deny(ReasonOutOfScope).Err("op")))
}
