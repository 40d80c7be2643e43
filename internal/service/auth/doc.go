// Package auth issues and validates HMAC-signed JWTs carrying the user's
// role, and hashes passwords with bcrypt.
package auth
