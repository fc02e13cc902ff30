// Package identity owns the persisted credential record and its storage contract.
//
// It contains the Credential entity, the name and password policy objects that
// guard it, and two Store implementations (Postgres and in-memory).
// Hashing and token signing live in cmd/security.
package identity
