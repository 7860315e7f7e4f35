package sagitta

import (
	"encoding/json"
)

type LookupRequestType int

const (
	LookupRequestTypeFind LookupRequestType = 0
	LookupRequestTypeExit LookupRequestType = 1
)

// LookupRequest is sent, one JSON document per line, to a sagitta process
// running in serve mode on the host that holds the accounting file.
type LookupRequest struct {
	RequestType LookupRequestType `json:"type"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
}

type LookupFindPayload struct {
	JobID     int64     `json:"job_id"`
	Direction Direction `json:"direction"`
}

// LookupResponse carries the raw accounting line back. Decoding happens on
// the requesting side so schema errors are reported there.
type LookupResponse struct {
	Found bool   `json:"found"`
	Line  string `json:"line,omitempty"`
	Error string `json:"error,omitempty"`
}
