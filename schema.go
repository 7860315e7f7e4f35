package sagitta

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the declared type of an accounting column.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindFloat
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindTimestamp:
		return "timestamp"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Column describes one positional field of an accounting line.
type Column struct {
	Name string
	Kind Kind

	// field returns a pointer into r for this column. The pointer type must
	// match Kind: *string, *int64, *float64 or *time.Time.
	field func(r *JobRecord) any
}

// Field returns a pointer to the JobRecord field backing this column.
func (c Column) Field(r *JobRecord) any {
	return c.field(r)
}

// FieldSeparator splits the columns of an accounting line.
const FieldSeparator = ":"

// JobNumberColumn is the index of the job ID in an accounting line.
const JobNumberColumn = 5

// maxEpoch is 9999-12-31T23:59:59Z.
const maxEpoch = 253402300799

// Schema is the fixed column layout of an accounting line.
var Schema = []Column{
	{"qname", KindText, func(r *JobRecord) any { return &r.QueueName }},
	{"hostname", KindText, func(r *JobRecord) any { return &r.Hostname }},
	{"group", KindText, func(r *JobRecord) any { return &r.Group }},
	{"owner", KindText, func(r *JobRecord) any { return &r.Owner }},
	{"job_name", KindText, func(r *JobRecord) any { return &r.JobName }},
	{"job_number", KindInteger, func(r *JobRecord) any { return &r.JobNumber }},
	{"account", KindText, func(r *JobRecord) any { return &r.Account }},
	{"priority", KindInteger, func(r *JobRecord) any { return &r.Priority }},
	{"submission_time", KindTimestamp, func(r *JobRecord) any { return &r.SubmissionTime }},
	{"start_time", KindTimestamp, func(r *JobRecord) any { return &r.StartTime }},
	{"end_time", KindTimestamp, func(r *JobRecord) any { return &r.EndTime }},
	{"failed", KindText, func(r *JobRecord) any { return &r.Failed }},
	{"exit_status", KindText, func(r *JobRecord) any { return &r.ExitStatus }},
	{"ru_wallclock", KindFloat, func(r *JobRecord) any { return &r.Usage.Wallclock }},
	{"ru_utime", KindFloat, func(r *JobRecord) any { return &r.Usage.UserTime }},
	{"ru_stime", KindFloat, func(r *JobRecord) any { return &r.Usage.SysTime }},
	{"ru_maxrss", KindFloat, func(r *JobRecord) any { return &r.Usage.MaxRSS }},
	{"ru_ixrss", KindFloat, func(r *JobRecord) any { return &r.Usage.IXRSS }},
	{"ru_ismrss", KindFloat, func(r *JobRecord) any { return &r.Usage.ISMRSS }},
	{"ru_idrss", KindFloat, func(r *JobRecord) any { return &r.Usage.IDRSS }},
	{"ru_isrss", KindFloat, func(r *JobRecord) any { return &r.Usage.ISRSS }},
	{"ru_minflt", KindFloat, func(r *JobRecord) any { return &r.Usage.MinFlt }},
	{"ru_majflt", KindFloat, func(r *JobRecord) any { return &r.Usage.MajFlt }},
	{"ru_nswap", KindFloat, func(r *JobRecord) any { return &r.Usage.NSwap }},
	{"ru_inblock", KindFloat, func(r *JobRecord) any { return &r.Usage.InBlock }},
	{"ru_oublock", KindFloat, func(r *JobRecord) any { return &r.Usage.OuBlock }},
	{"ru_msgsnd", KindFloat, func(r *JobRecord) any { return &r.Usage.MsgSnd }},
	{"ru_msgrcv", KindFloat, func(r *JobRecord) any { return &r.Usage.MsgRcv }},
	{"ru_nsignals", KindFloat, func(r *JobRecord) any { return &r.Usage.NSignals }},
	{"ru_nvcsw", KindFloat, func(r *JobRecord) any { return &r.Usage.NVCSW }},
	{"ru_nivcsw", KindFloat, func(r *JobRecord) any { return &r.Usage.NIVCSW }},
	{"project", KindText, func(r *JobRecord) any { return &r.Project }},
	{"department", KindText, func(r *JobRecord) any { return &r.Department }},
	{"granted_pe", KindText, func(r *JobRecord) any { return &r.GrantedPE }},
	{"slots", KindInteger, func(r *JobRecord) any { return &r.Slots }},
	{"task_number", KindInteger, func(r *JobRecord) any { return &r.TaskNumber }},
	{"cpu", KindFloat, func(r *JobRecord) any { return &r.Usage.CPU }},
	{"mem", KindFloat, func(r *JobRecord) any { return &r.Usage.Mem }},
	{"io", KindFloat, func(r *JobRecord) any { return &r.Usage.IO }},
	{"category", KindText, func(r *JobRecord) any { return &r.Category }},
	{"iow", KindFloat, func(r *JobRecord) any { return &r.Usage.IOW }},
	{"pe_taskid", KindText, func(r *JobRecord) any { return &r.PETaskID }},
	{"maxvmem", KindFloat, func(r *JobRecord) any { return &r.Usage.MaxVMem }},
	{"arid", KindInteger, func(r *JobRecord) any { return &r.ARID }},
	{"ar_submission_time", KindTimestamp, func(r *JobRecord) any { return &r.ARSubmissionTime }},
}

// FieldCountError is returned when a line does not have exactly len(Schema)
// fields.
type FieldCountError struct {
	Got int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("accounting line has %d fields, expected %d", e.Got, len(Schema))
}

// DecodeError identifies the first column that failed to convert.
type DecodeError struct {
	Index int
	Name  string
	Value string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode field %d (%s) from %q: %v", e.Index, e.Name, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeLine splits an accounting line and decodes it.
func DecodeLine(line string) (*JobRecord, error) {
	return Decode(strings.Split(line, FieldSeparator))
}

// Decode converts the fields of one accounting line into a JobRecord. Either
// every column converts or an error is returned and no record is produced.
func Decode(fields []string) (*JobRecord, error) {
	if len(fields) != len(Schema) {
		return nil, &FieldCountError{Got: len(fields)}
	}
	var rec JobRecord
	for i, col := range Schema {
		err := col.decode(&rec, fields[i])
		if err != nil {
			return nil, &DecodeError{Index: i, Name: col.Name, Value: fields[i], Err: err}
		}
	}
	return &rec, nil
}

// decode parses raw according to the column's declared kind and stores it
// in the column's field of r.
func (c Column) decode(r *JobRecord, raw string) error {
	dst := c.field(r)
	switch c.Kind {
	case KindText:
		return setField(c, dst, raw)
	case KindInteger:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		return setField(c, dst, v)
	case KindFloat:
		v, err := ParseFloat(raw)
		if err != nil {
			return err
		}
		return setField(c, dst, v)
	case KindTimestamp:
		v, err := ParseEpoch(raw)
		if err != nil {
			return err
		}
		return setField(c, dst, v)
	}
	return fmt.Errorf("column %s has unknown kind %v", c.Name, c.Kind)
}

func setField[T any](c Column, dst any, v T) error {
	p, ok := dst.(*T)
	if !ok {
		return fmt.Errorf("column %s is declared %v but its field is %T", c.Name, c.Kind, dst)
	}
	*p = v
	return nil
}

// ParseFloat parses a measured quantity. NaN and infinities are rejected.
func ParseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}

// ParseEpoch parses whole seconds since the Unix epoch into a UTC time.
func ParseEpoch(s string) (time.Time, error) {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if secs < 0 || secs > maxEpoch {
		return time.Time{}, fmt.Errorf("epoch seconds %d out of range", secs)
	}
	return time.Unix(secs, 0).UTC(), nil
}
