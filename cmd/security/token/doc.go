// Package token issues and verifies the HS256 JWTs handed to API clients.
//
// Two token kinds exist:
//   - access tokens carry {userId, login} and travel as Bearer credentials;
//   - refresh tokens carry {userId, deviceId} and travel in an httpOnly cookie.
//
// Each kind has its own signing secret and audience, so one can never be
// accepted in place of the other. The refresh token's iat is the value the
// session store binds to; it is always whole seconds.
package token
