// Package session implements per-device login sessions and refresh-token
// rotation.
//
// A session is keyed by device id and records the iat of the only refresh
// token currently valid for that device. A refresh token is honoured only if
// its iat equals the stored value; rotation swaps the stored value with a
// single conditional update, so of two requests presenting the same token at
// most one succeeds. Successive iats for a device strictly increase.
//
// Sessions live in MongoDB, PostgreSQL or process memory behind Store.
package session
