// Package auth reads the bearer credential of a request and turns it into a
// subject and role. Signature and claim checks are delegated to a Verifier.
package auth
