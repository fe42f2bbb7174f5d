// Package errors provides enhanced error handling capabilities for the
// indexing daemon.
//
// It extends the standard error interface with error codes, stack traces,
// metadata, and recovery hints. The codes double as the retry taxonomy: the
// job queue consults IsRetryable to decide between backoff-and-retry and
// burning the remaining attempts.
//
// Basic usage:
//
//	err := errors.New("database connection failed").
//	    WithCode(errors.CodeStoreUnreachable).
//	    WithMetadata("host", "localhost:5432")
//
// Wrapping errors:
//
//	if err := db.QueryRowContext(ctx, q).Scan(&id); err != nil {
//	    return errors.Wrap(err, "failed to query job").
//	        WithCode(errors.CodeDatabase)
//	}
//
// Management calls that reject an unknown repository name return an Envelope
// carrying fuzzy-match suggestions so callers can recover without a human:
//
//	env := errors.Envelope{
//	    Error:        "repository 'wrestling-gam' not found",
//	    Query:        "wrestling-gam",
//	    Suggestions:  []errors.Suggestion{{Name: "wrestling-game", Similarity: 0.96}},
//	    RecoveryHint: "did you mean one of the suggested repositories?",
//	}
package errors
