// Package authz decides what an authenticated principal may do. Guard turns an
// Authorization header into an application.Principal and rejects callers that
// lack a required role. Enforcer answers operation class questions from a
// Casbin policy and serves as the services' application.Policy.
package authz
