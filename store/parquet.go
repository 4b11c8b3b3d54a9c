package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// SchemaName is written into every file's key/value metadata.
const SchemaName = "decision_row_v1"

// DecisionRow is one agent decision in one game.
//
// Board holds the .lay rows of the state the decision was made from, joined
// with newlines, so a game can be replayed from the log alone. Outcome and
// FinalScore describe how the game ended; they are empty for games that were
// still running when the row was written.
type DecisionRow struct {
	GameID      string `parquet:"game_id,dict"`
	Layout      string `parquet:"layout,dict"`
	Turn        int32  `parquet:"turn"`
	Mode        string `parquet:"mode,dict"`
	Depth       int32  `parquet:"depth"`
	Fingerprint []byte `parquet:"fingerprint"`

	Move          string `parquet:"move,dict"`
	Value         int64  `parquet:"value"`
	Nodes         int64  `parquet:"nodes"`
	CacheHit      bool   `parquet:"cache_hit"`
	Truncated     bool   `parquet:"truncated"`
	ElapsedMicros int64  `parquet:"elapsed_us"`

	Score    int32  `parquet:"score"`
	FoodLeft int32  `parquet:"food_left"`
	Status   string `parquet:"status,dict"`
	Board    string `parquet:"board,zstd"`

	Outcome    string `parquet:"outcome,dict"`
	FinalScore int32  `parquet:"final_score"`
}

func writeOptions() []parquet.WriterOption {
	return []parquet.WriterOption{
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("fingerprint"),
		parquet.SkipPageBounds("board"),
		parquet.KeyValueMetadata("schema", SchemaName),
	}
}

// WriteBatchParquetAtomic writes rows into outDir/tmp and then renames the
// file into outDir, so readers globbing outDir never see a partial file.
func WriteBatchParquetAtomic(outDir string, rows []DecisionRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("decisions_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows, writeOptions()...); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

// ReadDecisionRows loads every row of a decision log file.
func ReadDecisionRows(path string) ([]DecisionRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	reader := parquet.NewGenericReader[DecisionRow](pf)
	defer reader.Close()

	out := make([]DecisionRow, 0, reader.NumRows())
	buf := make([]DecisionRow, 256)
	for {
		n, err := reader.Read(buf)
		for _, row := range buf[:n] {
			row.Fingerprint = bytes.Clone(row.Fingerprint)
			out = append(out, row)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rows %s: %w", path, err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}
