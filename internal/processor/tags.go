package processor

import (
	"context"

	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

// ruleTagSyncer is the built-in TagSyncer: it applies the repo's enabled
// path-pattern rules to indexed files.
type ruleTagSyncer struct {
	logger logger.Logger
}

func newRuleTagSyncer(log logger.Logger) *ruleTagSyncer {
	return &ruleTagSyncer{logger: log.Named("tag-sync")}
}

// SyncRules applies each enabled rule: ensure the tag exists, then tag every
// file whose path matches the rule's pattern. Inserts are conflict-free, so
// replays converge.
func (ts *ruleTagSyncer) SyncRules(ctx context.Context, scope RepoScope) (int, error) {
	type rule struct {
		Pattern string
		TagName string
	}

	rows, err := scope.Conn.QueryxContext(ctx,
		`SELECT pattern, tag_name FROM tag_rule WHERE enabled = true`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to load tag rules").
			WithCode(errors.CodeDatabase)
	}

	var rules []rule
	for rows.Next() {
		var r rule
		if err := rows.Scan(&r.Pattern, &r.TagName); err != nil {
			rows.Close()
			return 0, errors.Wrap(err, "failed to scan tag rule").
				WithCode(errors.CodeDatabase)
		}
		rules = append(rules, r)
	}
	rows.Close()

	applied := 0
	for _, r := range rules {
		if ctx.Err() != nil {
			return applied, ctx.Err()
		}

		var tagID string
		err := scope.Conn.QueryRowxContext(ctx, `
			INSERT INTO tag (name)
			VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`,
			r.TagName).Scan(&tagID)
		if err != nil {
			return applied, errors.Wrapf(err, "failed to ensure tag %s", r.TagName).
				WithCode(errors.CodeDatabase)
		}

		res, err := scope.Conn.ExecContext(ctx, `
			INSERT INTO entity_tag (tag_id, entity_kind, entity_id)
			SELECT $1, 'file', f.id
			FROM file f
			WHERE f.path LIKE '%' || $2 || '%'
			ON CONFLICT DO NOTHING`,
			tagID, r.Pattern)
		if err != nil {
			return applied, errors.Wrapf(err, "failed to apply rule %s", r.Pattern).
				WithCode(errors.CodeDatabase)
		}

		if n, _ := res.RowsAffected(); n > 0 {
			applied += int(n)
		}
	}

	ts.logger.Info("tag rules applied", "repo", scope.RepoName, "rules", len(rules), "tagged", applied)
	return applied, nil
}
