// Package schema manages per-repo namespace isolation in the shared store.
//
// Every repository gets its own PostgreSQL schema named after its
// registration (prefix + sanitized name). The manager creates and
// initializes these namespaces, scopes connections to them, enumerates and
// resolves them, and offers fuzzy-match suggestions for unknown names.
//
// Scoping rules: control-namespace SQL uses fully-qualified names and never
// goes through WithSchema; repo-scoped work always does, on a dedicated
// connection, because search_path is connection-local state:
//
//	err := mgr.WithSchema(ctx, schemaName, func(conn *sqlx.Conn) error {
//	    // Unqualified names now resolve to the repo schema, then public
//	    return conn.QueryRowxContext(ctx, "SELECT count(*) FROM file").Scan(&n)
//	})
package schema
