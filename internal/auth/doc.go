// Package auth obtains Google OAuth credentials for the Drive processor.
//
// Tokens are persisted as YAML at the configured token path with 0600
// permissions. Reads and writes take an advisory file lock so concurrent
// folio processes never observe a half-written token. When no token is
// stored, Authorizer runs the installed-app loopback flow: it listens on the
// callback port, sends the user to Google's consent page and exchanges the
// returned code.
package auth
