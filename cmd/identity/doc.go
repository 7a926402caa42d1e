// Package identity owns user accounts: registration with email
// confirmation, password recovery, credential checks and the admin user list.
//
// Persistence is behind Store (MongoDB in production, an in-memory map for
// tests and local runs). Mail delivery is behind Mailer.
package identity
