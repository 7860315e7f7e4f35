package sagitta

import (
	"fmt"
	"time"
)

// Direction selects which end of the accounting file a scan starts from.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// JobSource is anything that can produce a decoded accounting record for a
// job ID. A job that does not exist is reported with found == false and a nil
// error.
type JobSource interface {
	GetJobByID(jobID int64, dir Direction) (rec *JobRecord, found bool, err error)
}

// JobRecord is one decoded line of the accounting file.
type JobRecord struct {
	QueueName  string `json:"qname" yaml:"qname"`
	Hostname   string `json:"hostname" yaml:"hostname"`
	Group      string `json:"group" yaml:"group"`
	Owner      string `json:"owner" yaml:"owner"`
	JobName    string `json:"job_name" yaml:"job_name"`
	JobNumber  int64  `json:"job_number" yaml:"job_number"`
	Account    string `json:"account" yaml:"account"`
	Priority   int64  `json:"priority" yaml:"priority"`
	Project    string `json:"project" yaml:"project"`
	Department string `json:"department" yaml:"department"`
	GrantedPE  string `json:"granted_pe" yaml:"granted_pe"`
	Slots      int64  `json:"slots" yaml:"slots"`
	TaskNumber int64  `json:"task_number" yaml:"task_number"`
	PETaskID   string `json:"pe_taskid" yaml:"pe_taskid"`
	Category   string `json:"category" yaml:"category"`

	ARID             int64     `json:"arid" yaml:"arid"`
	ARSubmissionTime time.Time `json:"ar_submission_time" yaml:"ar_submission_time"`

	SubmissionTime time.Time `json:"submission_time" yaml:"submission_time"`
	StartTime      time.Time `json:"start_time" yaml:"start_time"`
	EndTime        time.Time `json:"end_time" yaml:"end_time"`

	// Failed and ExitStatus are kept as the scheduler wrote them.
	Failed     string `json:"failed" yaml:"failed"`
	ExitStatus string `json:"exit_status" yaml:"exit_status"`

	Usage ResourceUsage `json:"usage" yaml:"usage"`
}

// ResourceUsage holds the rusage style counters and the scheduler's own
// accounting of cpu, memory and io.
type ResourceUsage struct {
	Wallclock float64 `json:"ru_wallclock" yaml:"ru_wallclock"`
	UserTime  float64 `json:"ru_utime" yaml:"ru_utime"`
	SysTime   float64 `json:"ru_stime" yaml:"ru_stime"`
	MaxRSS    float64 `json:"ru_maxrss" yaml:"ru_maxrss"`
	IXRSS     float64 `json:"ru_ixrss" yaml:"ru_ixrss"`
	ISMRSS    float64 `json:"ru_ismrss" yaml:"ru_ismrss"`
	IDRSS     float64 `json:"ru_idrss" yaml:"ru_idrss"`
	ISRSS     float64 `json:"ru_isrss" yaml:"ru_isrss"`
	MinFlt    float64 `json:"ru_minflt" yaml:"ru_minflt"`
	MajFlt    float64 `json:"ru_majflt" yaml:"ru_majflt"`
	NSwap     float64 `json:"ru_nswap" yaml:"ru_nswap"`
	InBlock   float64 `json:"ru_inblock" yaml:"ru_inblock"`
	OuBlock   float64 `json:"ru_oublock" yaml:"ru_oublock"`
	MsgSnd    float64 `json:"ru_msgsnd" yaml:"ru_msgsnd"`
	MsgRcv    float64 `json:"ru_msgrcv" yaml:"ru_msgrcv"`
	NSignals  float64 `json:"ru_nsignals" yaml:"ru_nsignals"`
	NVCSW     float64 `json:"ru_nvcsw" yaml:"ru_nvcsw"`
	NIVCSW    float64 `json:"ru_nivcsw" yaml:"ru_nivcsw"`

	CPU     float64 `json:"cpu" yaml:"cpu"`
	Mem     float64 `json:"mem" yaml:"mem"`
	IO      float64 `json:"io" yaml:"io"`
	IOW     float64 `json:"iow" yaml:"iow"`
	MaxVMem float64 `json:"maxvmem" yaml:"maxvmem"`
}

// Succeeded reports whether the scheduler recorded neither a failure nor a
// non-zero exit status.
func (r *JobRecord) Succeeded() bool {
	return r.Failed == "0" && r.ExitStatus == "0"
}
