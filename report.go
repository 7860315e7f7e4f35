package sagitta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TimeLayout is used for every timestamp in the text report.
const TimeLayout = "2006-01-02 15:04:05 MST"

type reportLine struct {
	label string
	value string
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	return fmt.Sprintf("%v (%d)", t.UTC().Format(TimeLayout), t.Unix())
}

func formatSize(v float64, size Bytes) string {
	return fmt.Sprintf("%v (%v)", formatFloat(v), size)
}

func (r *JobRecord) reportSections() [][]reportLine {
	u := &r.Usage
	return [][]reportLine{
		{
			{"Job Number", strconv.FormatInt(r.JobNumber, 10)},
			{"Task Number", strconv.FormatInt(r.TaskNumber, 10)},
			{"Job Name", r.JobName},
			{"Owner", r.Owner},
			{"Group", r.Group},
			{"Account", r.Account},
			{"Project", r.Project},
			{"Department", r.Department},
			{"Queue", r.QueueName},
			{"Host", r.Hostname},
			{"Priority", strconv.FormatInt(r.Priority, 10)},
			{"Parallel Env", r.GrantedPE},
			{"Slots", strconv.FormatInt(r.Slots, 10)},
			{"PE Task ID", r.PETaskID},
			{"Category", r.Category},
			{"AR ID", strconv.FormatInt(r.ARID, 10)},
			{"AR Submitted", formatTime(r.ARSubmissionTime)},
		},
		{
			{"Submitted", formatTime(r.SubmissionTime)},
			{"Started", formatTime(r.StartTime)},
			{"Ended", formatTime(r.EndTime)},
			{"Failed", r.Failed},
			{"Exit Status", r.ExitStatus},
		},
		{
			{"Wallclock (s)", formatFloat(u.Wallclock)},
			{"User CPU (s)", formatFloat(u.UserTime)},
			{"System CPU (s)", formatFloat(u.SysTime)},
			{"Max RSS (KiB)", formatSize(u.MaxRSS, BytesFromKiB(u.MaxRSS))},
			{"Shared Mem Size", formatFloat(u.IXRSS)},
			{"Shared Mem RSS", formatFloat(u.ISMRSS)},
			{"Unshared Data", formatFloat(u.IDRSS)},
			{"Unshared Stack", formatFloat(u.ISRSS)},
			{"Page Reclaims", formatFloat(u.MinFlt)},
			{"Page Faults", formatFloat(u.MajFlt)},
			{"Swaps", formatFloat(u.NSwap)},
			{"Block Input Ops", formatFloat(u.InBlock)},
			{"Block Output Ops", formatFloat(u.OuBlock)},
			{"Messages Sent", formatFloat(u.MsgSnd)},
			{"Messages Received", formatFloat(u.MsgRcv)},
			{"Signals", formatFloat(u.NSignals)},
			{"Voluntary Ctx Sw", formatFloat(u.NVCSW)},
			{"Involuntary Ctx Sw", formatFloat(u.NIVCSW)},
			{"CPU (s)", formatFloat(u.CPU)},
			{"Mem (GB s)", formatFloat(u.Mem)},
			{"IO", formatFloat(u.IO)},
			{"IO Wait (s)", formatFloat(u.IOW)},
			{"Max VMem", formatSize(u.MaxVMem, BytesFromFloat(u.MaxVMem))},
		},
	}
}

var sectionTitles = []string{"Job Summary", "Timing", "Resource Usage"}

// WriteReport prints every field of r with a label.
func WriteReport(w io.Writer, r *JobRecord) error {
	for i, section := range r.reportSections() {
		title := sectionTitles[i]
		_, err := fmt.Fprintf(w, "%v\n%v\n", title, strings.Repeat("-", len(title)))
		if err != nil {
			return err
		}
		for _, line := range section {
			_, err = fmt.Fprintf(w, "%20v: %v\n", line.label, line.value)
			if err != nil {
				return err
			}
		}
		_, err = fmt.Fprintln(w)
		if err != nil {
			return err
		}
	}
	return nil
}

// Marshal renders r as "text", "yaml" or "json".
func Marshal(format string, r *JobRecord) ([]byte, error) {
	switch format {
	case "", "text":
		var buf bytes.Buffer
		err := WriteReport(&buf, r)
		if err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "yaml":
		return yaml.Marshal(r)
	case "json":
		out, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}
