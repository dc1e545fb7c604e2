package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/summerlia/zhuhaibay/models"
)

var archiveHeader = []string{"timestamp", "name", "available_units", "total_units", "developer", "district"}

// CSVArchive appends every persisted snapshot's projects to a CSV file.
// It is safe for concurrent use.
type CSVArchive struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVArchive opens the CSV file at path for appending, writing the header
// row when the file is new. Intermediate directories are created automatically.
func NewCSVArchive(path string) (*CSVArchive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(archiveHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
	}

	return &CSVArchive{file: f, writer: w}, nil
}

// Append writes one row per project in s.
func (c *CSVArchive) Append(s *models.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range s.Records {
		total := ""
		if r.TotalUnits != nil {
			total = strconv.Itoa(*r.TotalUnits)
		}
		row := []string{
			s.Timestamp,
			r.Name,
			strconv.Itoa(r.AvailableUnits),
			total,
			r.Developer,
			r.District,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVArchive) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}
