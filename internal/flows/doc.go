// Package flows contains pure-function orchestrators for identity linking and
// duplicate-account merging.
//
// Each flow function (RunResolveLinking, RunMergeAccounts, etc.) accepts a
// typed dependency struct and returns results without side-effects beyond
// those dependencies. The Engine builds the dependency structs once and
// delegates to the matching flow.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the identity provider, the profile
// store, the merge journal, audit and metrics. They do NOT own any of these
// resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goGuard (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows
