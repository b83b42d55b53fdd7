// Package bucket maps (flag key, tenant ID) pairs to stable rollout buckets.
//
// Every pair hashes to an integer in [0,100). The mapping is pure: it depends
// only on its inputs, so a tenant's bucket for a given flag never changes
// across calls, restarts, or machines. Percentage rollouts compare the bucket
// against the configured percentage, which makes rollout membership monotonic:
// raising the percentage only ever adds tenants, it never removes one.
//
// Hashing uses xxhash (64-bit) for speed and distribution quality. The hash
// input is "flagKey:tenantID", so distinct flags shard the tenant population
// independently of each other.
package bucket
