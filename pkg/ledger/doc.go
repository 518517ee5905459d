// Package ledger keeps the persistent accepted/rejected record of every
// (source, id) pair the engine has evaluated.
//
// The ledger is the single source of truth for deduplication. Each new
// record rewrites the whole file through a temporary file, fsync and rename,
// so an interrupted run never corrupts earlier entries. Concurrent processes
// sharing one ledger file are not supported.
//
// File format:
//
//	{
//	  "version": 1,
//	  "updated_at": "2026-10-18T09:00:00Z",
//	  "entries": {"met": {"436535": "accepted", "11417": "rejected"}}
//	}
//
// A plain {"met": ["436535"]} id list is also readable; those ids load as
// rejected until Reconcile finds their files on disk.
package ledger
