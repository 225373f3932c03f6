// Package preflight provides readiness checks for the capture source and the
// directories barscan writes to.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failing check.
//   - The CLI "barscan status" command prints the same results so operators
//     can see why a scan session refuses to start.
package preflight
