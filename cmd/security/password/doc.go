// Package password hashes and verifies account passwords.
//
// New hashes are Argon2id in the PHC string form
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt>$<key>.
// Bcrypt hashes ($2a$/$2b$/$2y$) imported from older deployments are still
// accepted by Verify, and NeedsRehash reports them so callers can upgrade
// the stored hash after a successful login.
//
// Hash strings are treated as untrusted input: Verify refuses parameters far
// above the configured cost.
package password
