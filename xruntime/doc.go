// Package xruntime wires GOMAXPROCS and GOMEMLIMIT to the host cgroup, for
// the process embedding the replication core. The core itself never calls
// this on its own.
package xruntime
