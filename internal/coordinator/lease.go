package coordinator

import "github.com/google/uuid"

// newLeaseID mints an operator-facing correlation id for one task checkout.
// It never participates in dedup or storage identity (SPEC_FULL.md §3).
func newLeaseID() string {
	return uuid.New().String()
}
