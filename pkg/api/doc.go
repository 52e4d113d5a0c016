// Package api exposes the access-control services over HTTP.
//
// # Routes
//
// Invitations and the approval workflow:
//
//	POST /projects/{projectID}/invitations
//	GET  /projects/{projectID}/invitations?status=&access_requested=&access_approved=
//	GET  /projects/{projectID}/access-requests
//	GET  /invitations/{invitationID}
//	POST /invitations/{invitationID}/accept
//	POST /invitations/{invitationID}/request-access
//	POST /invitations/{invitationID}/approve   {"action": "approve|reject", "rejectionReason", "accessLevel"}
//	POST /invitations/{invitationID}/revoke
//
// Team registry:
//
//	GET    /projects/{projectID}/team[?include_inactive=true]
//	POST   /projects/{projectID}/team
//	PUT    /projects/{projectID}/team            {"memberId", ...changed fields}
//	DELETE /projects/{projectID}/team?memberId=
//
// Authorization, audit and catalog:
//
//	POST /projects/{projectID}/authorize        {"action", "scope"}
//	GET  /projects/{projectID}/audit?format=json|ndjson|csv&action=&since=&until=
//	GET  /catalog
//
// Every route except /catalog requires a bearer token. The caller's project
// membership is resolved from the token subject; callers with no membership
// reach the services with an empty member ID and are denied there, so the
// denial is audited.
//
// Errors use the body and status mapping of pkg/httputil.
package api
