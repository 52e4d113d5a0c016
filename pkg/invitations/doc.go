// Package invitations implements the invitation ledger and the access
// approval workflow.
//
// An invitation moves forward only:
//
//	pending -> accepted -> access_requested -> approved
//	                                        -> rejected
//
// Any non-terminal invitation may also be revoked by an admin or expired once
// its response window closes. Approved, rejected, revoked and expired are
// terminal.
//
// Accepting an invitation does not grant access. An admin of the project must
// approve the access request, which creates or reactivates the invitee's team
// membership in the same transaction that marks the invitation approved.
// Every transition writes an audit entry in that transaction and publishes an
// event after commit.
package invitations
