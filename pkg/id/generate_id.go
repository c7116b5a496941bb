// Package id mints the public identifiers used across the service.
package id

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID32 returns exactly 32 hex characters (no separators/prefixes).
// It is a random (v4) UUID with the dashes dropped.
func NewID32() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// NewCustomerID is used when an affiliation arrives without a customer.
func NewCustomerID() string { return "cus_" + uuid.NewString() }

// NewTransactionID returns a short provider transaction reference, e.g. "sim-1a2b3c4d".
func NewTransactionID(prefix string) string { return prefix + "-" + NewID32()[:8] }
