// Package redissync propagates flag cache invalidations between service
// instances over redis pub/sub.
//
// Each instance keeps its own in-process snapshot cache (flag.Cache). After
// an admin mutation, the mutating instance invalidates locally and publishes
// the flag key on a shared channel; subscribers drop their snapshot for that
// key. Delivery is best-effort - a missed message only means the remote
// cache serves the old snapshot until its TTL expires, which is the staleness
// bound the cache promises anyway.
package redissync
