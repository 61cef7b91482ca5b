// Package registry provides an in-memory service registry: a concurrent
// table of live instances per service name with heartbeat-based liveness
// and staleness eviction.
//
// The registry exclusively owns all instance records. Callers mutate them
// only through Register, Deregister, UpdateStatus and Heartbeat; snapshots
// returned by Instances and Pick are copies.
package registry
