package worker

import (
	"github.com/TheYonk/robomonkey/internal/models"
)

// FollowUp is one job to enqueue after a parent completes
type FollowUp struct {
	JobType     models.JobType
	Priority    int
	DedupSuffix string
}

// DedupKey derives the canonical dedup key for this follow-up, so a burst
// of parents collapses to a single follow-up per activity.
func (f FollowUp) DedupKey(repoName string) string {
	return repoName + ":" + f.DedupSuffix
}

// FollowUpContext is everything the follow-up decision may consult. It is
// plain data so that Followups stays a pure function.
type FollowUpContext struct {
	Flags        models.RepoFlags
	ChangedPaths int
	TotalFiles   int
}

// summaryRegenThreshold is the fraction of changed files above which a
// batch reindex also refreshes the comprehensive repo summary.
const summaryRegenThreshold = 0.05

// Followups returns the jobs to enqueue after a successful parent, as a
// pure function of (parent job type, repo flags, change ratio).
//
// The dependency chain:
//
//	FULL_INDEX ─┬─ DOCS_SCAN ─┬─ SUMMARIZE_FILES ── EMBED_SUMMARIES
//	            │             └─ SUMMARIZE_SYMBOLS ─ EMBED_SUMMARIES
//	            ├─ EMBED_MISSING
//	            └─ REGENERATE_SUMMARY
//	REINDEX_FILE ── EMBED_MISSING
//	REINDEX_MANY ─┬─ EMBED_MISSING
//	              └─ REGENERATE_SUMMARY (>5% of files changed)
func Followups(parent models.JobType, fctx FollowUpContext) []FollowUp {
	var out []FollowUp

	add := func(jt models.JobType, suffix string) {
		out = append(out, FollowUp{
			JobType:     jt,
			Priority:    models.Priority(jt),
			DedupSuffix: suffix,
		})
	}

	switch parent {
	case models.JobTypeFullIndex:
		add(models.JobTypeDocsScan, "docs_scan")
		if fctx.Flags.AutoEmbed {
			add(models.JobTypeEmbedMissing, "embed_missing")
		}
		add(models.JobTypeRegenerateSummary, "regenerate_summary")

	case models.JobTypeReindexFile:
		if fctx.Flags.AutoEmbed {
			add(models.JobTypeEmbedMissing, "embed_missing")
		}

	case models.JobTypeReindexMany:
		if fctx.Flags.AutoEmbed {
			add(models.JobTypeEmbedMissing, "embed_missing")
		}
		if fctx.TotalFiles > 0 &&
			float64(fctx.ChangedPaths)/float64(fctx.TotalFiles) > summaryRegenThreshold {
			add(models.JobTypeRegenerateSummary, "regenerate_summary")
		}

	case models.JobTypeDocsScan:
		if fctx.Flags.AutoSummaries {
			add(models.JobTypeSummarizeFiles, "summarize_files")
			add(models.JobTypeSummarizeSymbols, "summarize_symbols")
		}

	case models.JobTypeSummarizeFiles, models.JobTypeSummarizeSymbols:
		if fctx.Flags.AutoEmbed {
			add(models.JobTypeEmbedSummaries, "embed_summaries")
		}
	}

	// EMBED_MISSING, EMBED_SUMMARIES, TAG_RULES_SYNC, REGENERATE_SUMMARY
	// are terminal: no fan-out.
	return out
}
