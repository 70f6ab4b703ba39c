// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories and DDL renderers with the storage
// package:
//
//   - "mssql"    (taxietl/internal/storage/mssql)
//   - "synapse"  (taxietl/internal/storage/synapse)
//   - "postgres" (taxietl/internal/storage/postgres)
//   - "sqlite"   (taxietl/internal/storage/sqlite)
//
// Typical usage (in cmd/taxietl or a similar wiring layer):
//
//	import _ "taxietl/internal/storage/all" // enable all built-in backends
//
//	repo, err := storage.New(ctx, storage.Config{Kind: p.Storage.Kind, ...})
//	if err != nil {
//	    return err
//	}
//	defer repo.Close()
//
// A binary that needs only a subset of backends can import those packages
// directly instead.
package all

import (
	_ "taxietl/internal/storage/mssql"
	_ "taxietl/internal/storage/postgres"
	_ "taxietl/internal/storage/sqlite"
	_ "taxietl/internal/storage/synapse"
)
