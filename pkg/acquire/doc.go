// Package acquire implements the acquisition engine: one budgeted session
// per museum adapter, run in random order, with the offline cycler as the
// final fallback.
//
// A session classifies every candidate exactly once. Ledger hits and items
// without an image reference are free; candidates whose bytes were fetched
// count against the budget whatever the verdict. Transient failures are
// skipped without touching the ledger so the item stays eligible for a
// later run.
package acquire
