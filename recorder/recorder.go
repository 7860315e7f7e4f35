package recorder

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/clemsonciti/sagitta"
	_ "github.com/mattn/go-sqlite3"
)

// Recorder keeps decoded job records in an sqlite database. Columns are
// named after the accounting schema.
type Recorder struct {
	db *sql.DB
}

func New(filename string) (*Recorder, error) {
	var r Recorder
	var err error

	dirName := path.Dir(filename)
	err = os.MkdirAll(dirName, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory %v: %w", dirName, err)
	}

	r.db, err = sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open db filename %v: %w", filename, err)
	}
	err = r.migrate()
	if err != nil {
		r.db.Close()
		return nil, fmt.Errorf("failed to migrate db filename %v: %w", filename, err)
	}

	return &r, nil
}

// Open opens an existing record DB read-only. Unlike New it never creates
// the file, so a missing DB is reported as an error wrapping fs.ErrNotExist.
func Open(filename string) (*Recorder, error) {
	_, err := os.Stat(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open db filename %v: %w", filename, err)
	}
	uri := "file:" + (&url.URL{Path: filename}).EscapedPath() + "?mode=ro"
	db, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open db filename %v: %w", filename, err)
	}
	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open db filename %v: %w", filename, err)
	}
	return &Recorder{db: db}, nil
}

func sqlType(k sagitta.Kind) string {
	switch k {
	case sagitta.KindInteger, sagitta.KindTimestamp:
		return "INTEGER NOT NULL"
	case sagitta.KindFloat:
		return "REAL NOT NULL"
	}
	return "TEXT NOT NULL"
}

// columnName maps a schema column to its quoted table column ("group" is an
// SQL keyword). Timestamps are stored as unix seconds.
func columnName(c sagitta.Column) string {
	if c.Kind == sagitta.KindTimestamp {
		return `"` + c.Name + `_unix"`
	}
	return `"` + c.Name + `"`
}

func columnNames() []string {
	names := make([]string, len(sagitta.Schema))
	for i, c := range sagitta.Schema {
		names[i] = columnName(c)
	}
	return names
}

func (r *Recorder) migrate() error {
	var defs []string
	for _, c := range sagitta.Schema {
		defs = append(defs, columnName(c)+" "+sqlType(c.Kind))
	}
	defs = append(defs, "recorded_at_ns INTEGER NOT NULL")
	defs = append(defs, "PRIMARY KEY (job_number, task_number)")

	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS job_record (` + strings.Join(defs, ",\n") + `)`)
	if err != nil {
		return fmt.Errorf("failed to create job_record table: %w", err)
	}
	return nil
}

// RecordJob stores rec, replacing an earlier record of the same job and task.
func (r *Recorder) RecordJob(rec *sagitta.JobRecord) error {
	names := columnNames()
	params := make([]any, 0, len(names)+1)
	for _, c := range sagitta.Schema {
		switch v := c.Field(rec).(type) {
		case *time.Time:
			params = append(params, v.Unix())
		case *string:
			params = append(params, *v)
		case *int64:
			params = append(params, *v)
		case *float64:
			params = append(params, *v)
		}
	}
	names = append(names, "recorded_at_ns")
	params = append(params, time.Now().UnixNano())
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")

	_, err := r.db.Exec(`
	INSERT OR REPLACE INTO job_record (`+strings.Join(names, ", ")+`)
	VALUES (`+placeholders+`)`, params...)
	if err != nil {
		return fmt.Errorf("failed to record job %v: %w", rec.JobNumber, err)
	}
	return nil
}

// GetJob returns the most recently recorded task of jobID. found is false if
// the job was never recorded.
func (r *Recorder) GetJob(jobID int64) (rec *sagitta.JobRecord, found bool, err error) {
	var out sagitta.JobRecord
	times := make(map[int]*int64)
	dest := make([]any, len(sagitta.Schema))
	for i, c := range sagitta.Schema {
		p := c.Field(&out)
		if _, ok := p.(*time.Time); ok {
			times[i] = new(int64)
			p = times[i]
		}
		dest[i] = p
	}

	err = r.db.QueryRow(`
		SELECT `+strings.Join(columnNames(), ", ")+`
		FROM job_record
		WHERE job_number = ?
		ORDER BY recorded_at_ns DESC, task_number DESC
		LIMIT 1
		`, jobID).Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load job %v: %w", jobID, err)
	}
	for i, unix := range times {
		*sagitta.Schema[i].Field(&out).(*time.Time) = time.Unix(*unix, 0).UTC()
	}
	return &out, true, nil
}

// GetJobByID lets a Recorder stand in for the accounting file. The direction
// does not matter to a database lookup.
func (r *Recorder) GetJobByID(jobID int64, _ sagitta.Direction) (*sagitta.JobRecord, bool, error) {
	return r.GetJob(jobID)
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
