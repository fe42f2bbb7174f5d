// Package validation provides lightweight field validation for job payloads
// and configuration values.
//
// Validators compose per field; the first failing validator reports and the
// remaining ones are skipped. Failures aggregate into a single coded
// validation error, which the worker pool treats as permanent (no retries).
//
// Basic usage:
//
//	err := validation.Validate(
//	    validation.NewField("repo_name", req.RepoName, validation.Required, validation.RepoName()),
//	    validation.NewField("path", p.Path, validation.Required, validation.RelPath()),
//	    validation.NewField("op", string(p.Op), validation.In("UPSERT", "DELETE")),
//	)
package validation
