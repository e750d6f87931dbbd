package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Stats computes the admin dashboard aggregates in one pass.
func (s *SQLiteStore) Stats(ctx context.Context, pools PoolCounts) (*Stats, error) {
	out := &Stats{Pools: pools}

	counts := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM raters`, &out.Totals.Raters},
		{`SELECT COUNT(*) FROM responses_a`, &out.Totals.A},
		{`SELECT COUNT(DISTINCT rater_id || '|' || category_id || '|' || prompt_id || '|' || seed_label) FROM responses_b`, &out.Totals.B},
		{`SELECT COUNT(*) FROM responses_c`, &out.Totals.C},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("stats totals: %w", err)
		}
	}

	var err error
	if out.A.MOS, err = s.mosRows(ctx); err != nil {
		return nil, err
	}
	if out.A.Text, err = s.textRows(ctx); err != nil {
		return nil, err
	}
	if out.A.People, err = s.peopleRows(ctx); err != nil {
		return nil, err
	}
	if out.B.Ranking, err = s.rankingRows(ctx); err != nil {
		return nil, err
	}
	if out.C.Diversity, err = s.diversityRows(ctx); err != nil {
		return nil, err
	}
	if out.Recent, err = s.recentRows(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) mosRows(ctx context.Context) ([]MOSRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, COUNT(*),
		       ROUND(AVG(adherence),2), ROUND(AVG(aesthetic),2),
		       ROUND(AVG(creativity),2), ROUND(AVG(style),2)
		FROM responses_a GROUP BY provider ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("stats mos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []MOSRow
	for rows.Next() {
		var r MOSRow
		if err := rows.Scan(&r.Provider, &r.N, &r.Adherence, &r.Aesthetic, &r.Creativity, &r.Style); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) textRows(ctx context.Context) ([]TextRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider,
		       SUM(CASE WHEN text_correctness='correct' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN text_correctness='partial' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN text_correctness='incorrect' THEN 1 ELSE 0 END)
		FROM responses_a
		WHERE text_correctness IS NOT NULL AND text_correctness <> ''
		GROUP BY provider ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("stats text: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TextRow
	for rows.Next() {
		var r TextRow
		if err := rows.Scan(&r.Provider, &r.Correct, &r.Partial, &r.Incorrect); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) peopleRows(ctx context.Context) ([]PeopleRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider,
		       SUM(CASE WHEN no_people=1 THEN 1 ELSE 0 END),
		       SUM(CASE WHEN no_people=1 AND people_violation=1 THEN 1 ELSE 0 END)
		FROM responses_a GROUP BY provider ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("stats people: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []PeopleRow
	for rows.Next() {
		var r PeopleRow
		if err := rows.Scan(&r.Provider, &r.WithRule, &r.Violations); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) rankingRows(ctx context.Context) ([]RankingRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, COUNT(*), ROUND(AVG(rank),2),
		       SUM(CASE WHEN rank=1 THEN 1 ELSE 0 END)
		FROM responses_b GROUP BY provider ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("stats ranking: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RankingRow
	for rows.Next() {
		var r RankingRow
		if err := rows.Scan(&r.Provider, &r.N, &r.AvgRank, &r.Wins); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) diversityRows(ctx context.Context) ([]DiversityRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider, COUNT(*), ROUND(AVG(diversity),2)
		FROM responses_c GROUP BY provider ORDER BY provider`)
	if err != nil {
		return nil, fmt.Errorf("stats diversity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []DiversityRow
	for rows.Next() {
		var r DiversityRow
		if err := rows.Scan(&r.Provider, &r.N, &r.AvgDiversity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) recentRows(ctx context.Context) (Recent, error) {
	var rec Recent
	var err error

	rec.A, err = s.scanRecent(ctx, `
		SELECT submitted_utc, rater_id, provider, category_id, prompt_id, seed_label, 0
		FROM responses_a ORDER BY id DESC LIMIT 10`)
	if err != nil {
		return rec, fmt.Errorf("stats recent A: %w", err)
	}
	rec.B, err = s.scanRecent(ctx, `
		SELECT submitted_utc, rater_id, '', category_id, prompt_id, seed_label, 0
		FROM responses_b WHERE rank=1 ORDER BY id DESC LIMIT 10`)
	if err != nil {
		return rec, fmt.Errorf("stats recent B: %w", err)
	}
	rec.C, err = s.scanRecent(ctx, `
		SELECT submitted_utc, rater_id, provider, category_id, prompt_id, 0, diversity
		FROM responses_c ORDER BY id DESC LIMIT 10`)
	if err != nil {
		return rec, fmt.Errorf("stats recent C: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) scanRecent(ctx context.Context, query string) ([]RecentRow, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []RecentRow
	for rows.Next() {
		var r RecentRow
		if err := rows.Scan(&r.SubmittedUTC, &r.RaterID, &r.Provider, &r.CategoryID, &r.PromptID, &r.SeedLabel, &r.Diversity); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ExportCSV dumps the three response tables to timestamped CSV files
// under dir and returns the written paths. Empty tables are skipped.
func (s *SQLiteStore) ExportCSV(ctx context.Context, dir string) ([]string, error) {
	ts := time.Now().UTC().Format("20060102_150405")
	var written []string
	for _, table := range []string{"responses_a", "responses_b", "responses_c"} {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", table, ts))
		n, err := s.exportTable(ctx, table, path)
		if err != nil {
			return written, fmt.Errorf("export %s: %w", table, err)
		}
		if n > 0 {
			written = append(written, path)
		}
	}
	return written, nil
}

func (s *SQLiteStore) exportTable(ctx context.Context, table, path string) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM `+table) //nolint:gosec // table names are fixed above
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	var f *os.File
	var w *csv.Writer
	count := 0
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}

		if f == nil {
			if f, err = os.Create(path); err != nil {
				return count, err
			}
			defer func() { _ = f.Close() }()
			w = csv.NewWriter(f)
			if err := w.Write(cols); err != nil {
				return count, err
			}
		}

		rec := make([]string, len(vals))
		for i, v := range vals {
			rec[i] = v.String
		}
		if err := w.Write(rec); err != nil {
			return count, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}
	if w != nil {
		w.Flush()
		if err := w.Error(); err != nil {
			return count, err
		}
	}
	return count, nil
}
