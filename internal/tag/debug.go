// +build debug

package tag

// Debug enables expensive runtime invariant checks.
const Debug = true
