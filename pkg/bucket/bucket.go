package bucket

import (
	"github.com/cespare/xxhash/v2"
)

// BucketCount is the number of rollout buckets. Assign returns values in
// [0, BucketCount).
const BucketCount = 100

// Assign returns the rollout bucket for the given flag key and tenant ID.
// The result is deterministic: identical inputs always produce the identical
// bucket, independent of time, process, or rollout configuration.
func Assign(flagKey, tenantID string) int {
	d := xxhash.New()
	_, _ = d.WriteString(flagKey)
	_, _ = d.WriteString(":")
	_, _ = d.WriteString(tenantID)
	return int(d.Sum64() % BucketCount)
}

// InRollout reports whether the tenant falls inside a percentage rollout for
// the flag. Percentage is clamped to [0,100]; 0 includes nobody, 100 everyone.
func InRollout(flagKey, tenantID string, percentage int) bool {
	if percentage <= 0 {
		return false
	}
	if percentage >= BucketCount {
		return true
	}
	return Assign(flagKey, tenantID) < percentage
}
