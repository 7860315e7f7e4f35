package sge

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/clemsonciti/sagitta"
)

// CommentPrefix marks lines that are never job records.
const CommentPrefix = "#"

// DefaultMaxLineSize is the longest line that can hold a job record.
const DefaultMaxLineSize = 1 << 20

// Locator finds the accounting line of a job in an accounting file.
type Locator struct {
	Path string

	// Preamble is the number of lines at the start of the file that are
	// skipped whatever they contain.
	Preamble int

	// MaxLineSize is the longest line considered a record. Longer lines are
	// skipped like any other malformed line, in both directions. Zero means
	// DefaultMaxLineSize.
	MaxLineSize int

	// ChunkSize is the read size of a backward scan. Zero means 64 KiB.
	ChunkSize int
}

// Find returns the first line, in dir's scan order, whose job number column
// equals jobID. A job that is not in the file gives found == false and a nil
// error; errors are only returned when the file cannot be opened or read.
func (l Locator) Find(jobID int64, dir sagitta.Direction) (line string, found bool, err error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return "", false, fmt.Errorf("failed to open accounting file %v: %w", l.Path, err)
	}
	defer f.Close()

	var lines lineScanner
	switch dir {
	case sagitta.Forward:
		lines, err = l.forward(f)
	case sagitta.Backward:
		lines, err = l.backward(f)
	default:
		return "", false, fmt.Errorf("unknown scan direction %v", dir)
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read accounting file %v: %w", l.Path, err)
	}

	slog.Debug("scanning accounting file", "path", l.Path, "jobID", jobID, "direction", dir)
	line, found = findJob(lines, jobID, l.maxLineSize())
	if err := lines.Err(); err != nil {
		return "", false, fmt.Errorf("failed to read accounting file %v: %w", l.Path, err)
	}
	return line, found, nil
}

func (l Locator) maxLineSize() int {
	if l.MaxLineSize <= 0 {
		return DefaultMaxLineSize
	}
	return l.MaxLineSize
}

func (l Locator) forward(f *os.File) (lineScanner, error) {
	scanner := newForwardScanner(f, l.maxLineSize())
	for i := 0; i < l.Preamble; i++ {
		if !scanner.Scan() {
			break
		}
	}
	return scanner, nil
}

func (l Locator) backward(f *os.File) (lineScanner, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	var start int64
	if l.Preamble > 0 {
		start, err = skipLines(f, l.Preamble)
		if err != nil {
			return nil, err
		}
	}
	return newReverseScanner(f, start, info.Size(), l.ChunkSize), nil
}

// findJob returns the first line from lines whose job number is jobID.
// Comments, short or over-long lines and lines with a non-numeric job number
// are skipped.
func findJob(lines lineScanner, jobID int64, maxLine int) (string, bool) {
	for lines.Scan() {
		line := lines.Text()
		if len(line) > maxLine {
			slog.Debug("skipping over-long accounting line", "length", len(line), "max", maxLine)
			continue
		}
		id, ok := lineJobID(line)
		if !ok {
			continue
		}
		if id == jobID {
			return line, true
		}
	}
	return "", false
}

// lineJobID extracts the job number of an accounting line.
func lineJobID(line string) (int64, bool) {
	if strings.HasPrefix(line, CommentPrefix) {
		return 0, false
	}
	fields := strings.SplitN(line, sagitta.FieldSeparator, sagitta.JobNumberColumn+2)
	if len(fields) <= sagitta.JobNumberColumn {
		slog.Debug("skipping short accounting line", "fields", len(fields))
		return 0, false
	}
	id, err := strconv.ParseInt(fields[sagitta.JobNumberColumn], 10, 64)
	if err != nil {
		slog.Debug("skipping accounting line with bad job number", "value", fields[sagitta.JobNumberColumn], "err", err)
		return 0, false
	}
	return id, true
}
