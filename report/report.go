// Package report aggregates decision logs with DuckDB.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"text/tabwriter"

	_ "github.com/duckdb/duckdb-go/v2"
)

// ErrNoData is returned when no decision log exists under any root.
var ErrNoData = errors.New("no decision logs found")

// ModeSummary aggregates every game played with one search mode.
type ModeSummary struct {
	Mode           string
	Games          int64
	Wins           int64
	Losses         int64
	MeanFinalScore float64
	Decisions      int64
	MeanNodes      float64
	CacheHitRate   float64
	TruncatedRate  float64
	MeanElapsedUS  float64
}

// LayoutSummary aggregates the games of one mode on one layout.
type LayoutSummary struct {
	Layout         string
	Mode           string
	Games          int64
	Wins           int64
	MeanFinalScore float64
	MeanTurns      float64
}

// Open returns an in-memory DuckDB with a "decisions" view over every
// parquet file below roots.
func Open(roots []string) (*sql.DB, error) {
	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		ok, err := hasParquet(root)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		glob := filepath.Join(root, "**", "*.parquet")
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
	}
	if len(globs) == 0 {
		return nil, ErrNoData
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	_, _ = db.Exec("PRAGMA threads=4")

	sqlText := `CREATE OR REPLACE VIEW decisions AS
		SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)
		WHERE NOT contains(filename, '/tmp/')`
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create decisions view: %w", err)
	}
	return db, nil
}

// hasParquet reports whether any finished parquet file lives under root.
func hasParquet(root string) (bool, error) {
	found := false
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == "tmp" {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".parquet") {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return found, err
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Rows without an outcome come from games that were never finished by a
// session (websocket games, cancelled runs). They count as decisions but
// not as games.
const modeQuery = `
WITH games AS (
	SELECT mode, game_id, any_value(outcome) AS outcome, any_value(final_score) AS final_score
	FROM decisions
	WHERE outcome IS NOT NULL AND outcome <> ''
	GROUP BY mode, game_id
), decs AS (
	SELECT mode,
		COUNT(*) AS decisions,
		AVG(nodes) AS mean_nodes,
		AVG(CASE WHEN cache_hit THEN 1.0 ELSE 0.0 END) AS hit_rate,
		AVG(CASE WHEN truncated THEN 1.0 ELSE 0.0 END) AS trunc_rate,
		AVG(elapsed_us) AS mean_us
	FROM decisions
	GROUP BY mode
)
SELECT d.mode,
	COUNT(g.game_id) AS games,
	COUNT(g.game_id) FILTER (WHERE g.outcome = 'won') AS wins,
	COUNT(g.game_id) FILTER (WHERE g.outcome = 'lost') AS losses,
	COALESCE(AVG(g.final_score), 0)::DOUBLE,
	d.decisions, d.mean_nodes::DOUBLE, d.hit_rate::DOUBLE, d.trunc_rate::DOUBLE, d.mean_us::DOUBLE
FROM decs d LEFT JOIN games g ON g.mode = d.mode
GROUP BY d.mode, d.decisions, d.mean_nodes, d.hit_rate, d.trunc_rate, d.mean_us
ORDER BY d.mode`

func Modes(ctx context.Context, db *sql.DB) ([]ModeSummary, error) {
	rows, err := db.QueryContext(ctx, modeQuery)
	if err != nil {
		return nil, fmt.Errorf("query modes: %w", err)
	}
	defer rows.Close()

	var out []ModeSummary
	for rows.Next() {
		var m ModeSummary
		if err := rows.Scan(&m.Mode, &m.Games, &m.Wins, &m.Losses, &m.MeanFinalScore,
			&m.Decisions, &m.MeanNodes, &m.CacheHitRate, &m.TruncatedRate, &m.MeanElapsedUS); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

const layoutQuery = `
WITH games AS (
	SELECT layout, mode, game_id,
		any_value(outcome) AS outcome,
		any_value(final_score) AS final_score,
		COUNT(*) AS turns
	FROM decisions
	WHERE outcome IS NOT NULL AND outcome <> ''
	GROUP BY layout, mode, game_id
)
SELECT layout, mode,
	COUNT(*) AS games,
	COUNT(*) FILTER (WHERE outcome = 'won') AS wins,
	AVG(final_score)::DOUBLE,
	AVG(turns)::DOUBLE
FROM games
GROUP BY layout, mode
ORDER BY layout, mode`

func Layouts(ctx context.Context, db *sql.DB) ([]LayoutSummary, error) {
	rows, err := db.QueryContext(ctx, layoutQuery)
	if err != nil {
		return nil, fmt.Errorf("query layouts: %w", err)
	}
	defer rows.Close()

	var out []LayoutSummary
	for rows.Next() {
		var l LayoutSummary
		if err := rows.Scan(&l.Layout, &l.Mode, &l.Games, &l.Wins, &l.MeanFinalScore, &l.MeanTurns); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Write prints both summaries as aligned tables.
func Write(w io.Writer, modes []ModeSummary, layouts []LayoutSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODE\tGAMES\tWON\tLOST\tSCORE\tDECISIONS\tNODES\tCACHE\tTRUNC\tUS")
	for _, m := range modes {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.1f\t%d\t%.0f\t%.1f%%\t%.1f%%\t%.0f\n",
			m.Mode, m.Games, m.Wins, m.Losses, m.MeanFinalScore,
			m.Decisions, m.MeanNodes, 100*m.CacheHitRate, 100*m.TruncatedRate, m.MeanElapsedUS)
	}
	if len(layouts) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "LAYOUT\tMODE\tGAMES\tWON\tSCORE\tTURNS")
		for _, l := range layouts {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f\t%.1f\n",
				l.Layout, l.Mode, l.Games, l.Wins, l.MeanFinalScore, l.MeanTurns)
		}
	}
	return tw.Flush()
}
