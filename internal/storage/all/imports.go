// Package all wires all built-in sink backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the storage package. Importing it makes the following
// sink kinds available at runtime:
//
//   - "postgres" (replicator/internal/storage/postgres)
//   - "mssql"    (replicator/internal/storage/mssql)
//   - "mysql"    (replicator/internal/storage/mysql)
//   - "sqlite"   (replicator/internal/storage/sqlite)
//
// Typical usage (in cmd/replicator):
//
//	import _ "replicator/internal/storage/all"
//
//	sink, err := storage.New(ctx, storage.Config{Kind: cfg.Sink.Kind, DSN: dsn})
//	if err != nil {
//	    // handle error
//	}
//	defer sink.Close()
//
// A binary that needs only a subset of backends can import those packages
// directly instead.
package all

import (
	_ "replicator/internal/storage/mssql"
	_ "replicator/internal/storage/mysql"
	_ "replicator/internal/storage/postgres"
	_ "replicator/internal/storage/sqlite"
)
