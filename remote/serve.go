package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/clemsonciti/sagitta"
)

// Finder locates the raw accounting line of a job. sge.Locator is the usual
// implementation.
type Finder interface {
	Find(jobID int64, dir sagitta.Direction) (line string, found bool, err error)
}

func handleFindRequest(req *sagitta.LookupRequest, finder Finder, w *json.Encoder) error {
	var payload sagitta.LookupFindPayload
	err := json.Unmarshal(req.Payload, &payload)
	if err != nil {
		return fmt.Errorf("failed to unmarshal find payload: %w", err)
	}

	var res sagitta.LookupResponse
	res.Line, res.Found, err = finder.Find(payload.JobID, payload.Direction)
	if err != nil {
		// Lookup failures belong to the client; the session stays up.
		res.Error = err.Error()
	}
	slog.Debug("handled find request", "jobID", payload.JobID, "found", res.Found, "err", err)
	err = w.Encode(res)
	if err != nil {
		return fmt.Errorf("failed to write find response: %w", err)
	}
	return nil
}

// Serve answers lookup requests read from r until r is exhausted or an exit
// request arrives.
func Serve(r io.Reader, w io.Writer, finder Finder) error {
	requestDecoder := json.NewDecoder(r)
	responseEncoder := json.NewEncoder(w)

	for {
		var req sagitta.LookupRequest
		err := requestDecoder.Decode(&req)
		if errors.Is(err, io.EOF) {
			slog.Debug("request stream closed")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to decode request: %w", err)
		}
		slog.Debug("got request", "type", req.RequestType)
		switch req.RequestType {
		case sagitta.LookupRequestTypeFind:
			err = handleFindRequest(&req, finder, responseEncoder)
		case sagitta.LookupRequestTypeExit:
			slog.Debug("exiting...")
			return nil
		default:
			err = fmt.Errorf("unknown request type %v", req.RequestType)
		}
		if err != nil {
			return err
		}
	}
}
