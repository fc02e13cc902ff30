// Package password hashes and verifies secrets with Argon2id.
//
// Encoded hashes use the PHC string format:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// The same hasher fingerprints account passwords and refresh tokens. Policy checks
// (length, charset) live with the identity policies and are applied before hashing.
//
// Hash strings are untrusted input during Verify: they are strictly decoded and
// refused when their parameters exceed sane bounds. Every failure is a mismatch.
package password
