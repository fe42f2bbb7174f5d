package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheYonk/robomonkey/internal/models"
)

type followUpPair struct {
	jobType  models.JobType
	dedupKey string
}

func pairs(repo string, fus []FollowUp) []followUpPair {
	out := make([]followUpPair, 0, len(fus))
	for _, f := range fus {
		out = append(out, followUpPair{f.JobType, f.DedupKey(repo)})
	}

	return out
}

func TestFollowups_FullIndex(t *testing.T) {
	tests := []struct {
		name  string
		flags models.RepoFlags
		want  []followUpPair
	}{
		{
			name:  "embed enabled",
			flags: models.RepoFlags{AutoEmbed: true},
			want: []followUpPair{
				{models.JobTypeDocsScan, "r:docs_scan"},
				{models.JobTypeEmbedMissing, "r:embed_missing"},
				{models.JobTypeRegenerateSummary, "r:regenerate_summary"},
			},
		},
		{
			name:  "embed disabled",
			flags: models.RepoFlags{},
			want: []followUpPair{
				{models.JobTypeDocsScan, "r:docs_scan"},
				{models.JobTypeRegenerateSummary, "r:regenerate_summary"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Followups(models.JobTypeFullIndex, FollowUpContext{Flags: tt.flags})
			assert.Equal(t, tt.want, pairs("r", got))
		})
	}
}

func TestFollowups_ReindexFile(t *testing.T) {
	got := Followups(models.JobTypeReindexFile, FollowUpContext{
		Flags: models.RepoFlags{AutoEmbed: true},
	})
	assert.Equal(t, []followUpPair{
		{models.JobTypeEmbedMissing, "r:embed_missing"},
	}, pairs("r", got))

	got = Followups(models.JobTypeReindexFile, FollowUpContext{})
	assert.Empty(t, got)
}

func TestFollowups_ReindexMany_ChangeThreshold(t *testing.T) {
	flags := models.RepoFlags{AutoEmbed: true}

	// 4 of 100 files changed: no summary regen
	got := Followups(models.JobTypeReindexMany, FollowUpContext{
		Flags: flags, ChangedPaths: 4, TotalFiles: 100,
	})
	assert.Equal(t, []followUpPair{
		{models.JobTypeEmbedMissing, "r:embed_missing"},
	}, pairs("r", got))

	// 6 of 100 files changed: summary regen
	got = Followups(models.JobTypeReindexMany, FollowUpContext{
		Flags: flags, ChangedPaths: 6, TotalFiles: 100,
	})
	assert.Equal(t, []followUpPair{
		{models.JobTypeEmbedMissing, "r:embed_missing"},
		{models.JobTypeRegenerateSummary, "r:regenerate_summary"},
	}, pairs("r", got))

	// Exactly 5% does not cross the strict threshold
	got = Followups(models.JobTypeReindexMany, FollowUpContext{
		Flags: flags, ChangedPaths: 5, TotalFiles: 100,
	})
	assert.Len(t, got, 1)

	// Zero total files never regenerates
	got = Followups(models.JobTypeReindexMany, FollowUpContext{
		Flags: flags, ChangedPaths: 10, TotalFiles: 0,
	})
	assert.Len(t, got, 1)
}

func TestFollowups_DocsScan(t *testing.T) {
	got := Followups(models.JobTypeDocsScan, FollowUpContext{
		Flags: models.RepoFlags{AutoSummaries: true},
	})
	assert.Equal(t, []followUpPair{
		{models.JobTypeSummarizeFiles, "r:summarize_files"},
		{models.JobTypeSummarizeSymbols, "r:summarize_symbols"},
	}, pairs("r", got))

	got = Followups(models.JobTypeDocsScan, FollowUpContext{
		Flags: models.RepoFlags{AutoEmbed: true},
	})
	assert.Empty(t, got)
}

func TestFollowups_Summarize(t *testing.T) {
	for _, parent := range []models.JobType{models.JobTypeSummarizeFiles, models.JobTypeSummarizeSymbols} {
		got := Followups(parent, FollowUpContext{Flags: models.RepoFlags{AutoEmbed: true}})
		assert.Equal(t, []followUpPair{
			{models.JobTypeEmbedSummaries, "r:embed_summaries"},
		}, pairs("r", got), string(parent))

		got = Followups(parent, FollowUpContext{})
		assert.Empty(t, got, string(parent))
	}
}

func TestFollowups_TerminalTypes(t *testing.T) {
	allFlags := models.RepoFlags{AutoEmbed: true, AutoSummaries: true}

	for _, jt := range []models.JobType{
		models.JobTypeEmbedMissing,
		models.JobTypeEmbedSummaries,
		models.JobTypeTagRulesSync,
		models.JobTypeRegenerateSummary,
	} {
		assert.Empty(t, Followups(jt, FollowUpContext{Flags: allFlags}), string(jt))
	}
}

// Purity: the fan-out is a fixed function of its inputs, so repeated calls
// with identical inputs agree exactly.
func TestFollowups_Pure(t *testing.T) {
	for _, jt := range models.AllJobTypes() {
		for _, flags := range []models.RepoFlags{
			{},
			{AutoEmbed: true},
			{AutoSummaries: true},
			{AutoEmbed: true, AutoSummaries: true},
		} {
			fctx := FollowUpContext{Flags: flags, ChangedPaths: 7, TotalFiles: 100}
			first := Followups(jt, fctx)
			for i := 0; i < 3; i++ {
				assert.Equal(t, first, Followups(jt, fctx))
			}
		}
	}
}

func TestFollowups_CanonicalPriorities(t *testing.T) {
	got := Followups(models.JobTypeFullIndex, FollowUpContext{
		Flags: models.RepoFlags{AutoEmbed: true},
	})

	for _, f := range got {
		assert.Equal(t, models.Priority(f.JobType), f.Priority, string(f.JobType))
	}
}
