// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite databases the way every Bureau
// service does: a fixed-size zombiezen sqlitex.Pool with a shared set
// of pragmas applied to each connection.
//
// # Pragmas
//
//   - journal_mode=WAL: readers never block the single writer.
//   - synchronous=NORMAL: commits survive a process crash without an
//     fsync per transaction.
//   - busy_timeout=5000: wait up to five seconds for the write lock
//     instead of failing with SQLITE_BUSY.
//   - foreign_keys=ON: credential and environment variable rows
//     reference their owning user.
//   - cache_size=-8192: 8 MB page cache per connection.
//   - temp_store=MEMORY: temporary tables stay off disk.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/lib/bureau/context/users.db",
//	    Logger: logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	err = pool.WithConn(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{...})
//	})
//
// The package stays thin on purpose: callers write SQL against the
// zombiezen types directly.
package sqlitepool
