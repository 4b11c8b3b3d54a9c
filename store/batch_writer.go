package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
)

// BatchWriter streams decision rows into one parquet file under outDir/tmp.
// Finalize moves it into outDir. It is not safe for concurrent use.
type BatchWriter struct {
	outDir  string
	tmpPath string
	outPath string

	file   *os.File
	writer *parquet.GenericWriter[DecisionRow]

	games int
	rows  int
}

func NewBatchWriter(outDir string) (*BatchWriter, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}

	absOut, err := filepath.Abs(outDir)
	if err != nil {
		absOut = outDir
	}
	tmpDir := filepath.Join(absOut, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("decisions_%d.parquet", time.Now().UnixNano())
	tmpPath := filepath.Join(tmpDir, name)

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tmp parquet: %w", err)
	}

	return &BatchWriter{
		outDir:  absOut,
		tmpPath: tmpPath,
		outPath: filepath.Join(absOut, name),
		file:    f,
		writer:  parquet.NewGenericWriter[DecisionRow](f, writeOptions()...),
	}, nil
}

func (b *BatchWriter) OutPath() string { return b.outPath }
func (b *BatchWriter) Games() int      { return b.games }
func (b *BatchWriter) Rows() int       { return b.rows }

// WriteGame appends the rows of one finished game.
func (b *BatchWriter) WriteGame(rows []DecisionRow) error {
	if b.writer == nil {
		return fmt.Errorf("batch writer is closed")
	}
	if len(rows) > 0 {
		if _, err := b.writer.Write(rows); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
	}
	b.rows += len(rows)
	b.games++
	return nil
}

// Finalize closes the file and moves it into outDir. With no rows written the
// tmp file is removed and the returned path is empty.
func (b *BatchWriter) Finalize() (outPath string, err error) {
	if b.writer == nil && b.file == nil {
		return "", nil
	}

	closeErr := b.writer.Close()
	b.writer = nil
	_ = b.file.Sync()
	fileErr := b.file.Close()
	b.file = nil

	if closeErr != nil {
		return "", fmt.Errorf("close parquet writer: %w", closeErr)
	}
	if fileErr != nil {
		return "", fmt.Errorf("close parquet file: %w", fileErr)
	}

	if b.rows == 0 {
		_ = os.Remove(b.tmpPath)
		return "", nil
	}
	if err := os.Rename(b.tmpPath, b.outPath); err != nil {
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return b.outPath, nil
}
