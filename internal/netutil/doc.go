// Package netutil provides collision-free TCP port allocation for managed
// server installations. Its central type, Registry, draws candidate ports
// from the ephemeral range and verifies each one with a throwaway bind,
// while tracking reservations across the process so concurrent allocations
// never hand out the same number before a server has bound it.
package netutil
