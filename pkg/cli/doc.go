// Package cli implements the sitepass command line.
//
// Commands:
//
//	sitepass serve            run the HTTP API, health server and sweeper
//	sitepass migrate          apply the schema to the configured store
//	sitepass sweep            expire stale invitations once and exit
//	sitepass bootstrap-admin  make a user the first admin of an empty project
//	sitepass token            mint a development bearer token
//	sitepass version          print the build version
//
// Configuration is read from the YAML file named by --config or
// SITEPASS_CONFIG, then overridden by SITEPASS_* environment variables.
package cli
