package remote

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clemsonciti/sagitta"
	"github.com/clemsonciti/sagitta/sge"
)

type fakeFinder struct {
	lines map[int64]string
	err   error
	dirs  []sagitta.Direction
}

func (f *fakeFinder) Find(jobID int64, dir sagitta.Direction) (string, bool, error) {
	f.dirs = append(f.dirs, dir)
	if f.err != nil {
		return "", false, f.err
	}
	line, ok := f.lines[jobID]
	return line, ok, nil
}

// startServer connects a Session to Serve through in-memory pipes.
func startServer(t *testing.T, finder Finder) (*Session, chan error) {
	t.Helper()
	reqR, reqW := io.Pipe()
	resR, resW := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := Serve(reqR, resW, finder)
		resW.Close()
		done <- err
	}()
	return newSession("testhost", reqW, resR), done
}

func sampleLine(jobID string) string {
	fields := []string{
		"all.q", "node003", "users", "dave", "remote job", jobID, "sge", "0",
		"1700000000", "1700000010", "1700000070", "0", "0",
		"60", "55.5", "1.25", "10240", "0", "0", "0", "0",
		"100", "0", "0", "8", "16", "0", "0", "0", "20", "4",
		"NONE", "defaultdepartment", "NONE", "1", "0",
		"56.75", "0.5", "0.01", "NONE", "0", "NONE", "104857600",
		"0", "0",
	}
	return strings.Join(fields, ":")
}

func TestSessionFind(t *testing.T) {
	finder := &fakeFinder{lines: map[int64]string{
		12: sampleLine("12"),
		13: "too:short",
	}}
	s, done := startServer(t, finder)

	rec, found, err := s.GetJobByID(12, sagitta.Backward)
	if err != nil || !found {
		t.Fatalf("expected job 12, got found=%v err=%v", found, err)
	}
	if rec.JobName != "remote job" || rec.Owner != "dave" {
		t.Errorf("unexpected record %+v", rec)
	}

	rec, found, err = s.GetJobByID(99, sagitta.Forward)
	if rec != nil || found || err != nil {
		t.Errorf("expected job 99 to be missing, got %v %v %v", rec, found, err)
	}

	_, _, err = s.GetJobByID(13, sagitta.Forward)
	var countErr *sagitta.FieldCountError
	if !errors.As(err, &countErr) {
		t.Errorf("expected field count error, got %v", err)
	}

	err = s.Close()
	if err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("server failed: %v", err)
	}
	want := []sagitta.Direction{sagitta.Backward, sagitta.Forward, sagitta.Forward}
	if len(finder.dirs) != len(want) {
		t.Fatalf("server saw %d requests, expected %d", len(finder.dirs), len(want))
	}
	for i := range want {
		if finder.dirs[i] != want[i] {
			t.Errorf("request %d: expected direction %v, got %v", i, want[i], finder.dirs[i])
		}
	}
}

func TestSessionRemoteError(t *testing.T) {
	s, done := startServer(t, &fakeFinder{err: errors.New("permission denied")})
	_, found, err := s.Find(1, sagitta.Forward)
	if err == nil || found {
		t.Fatalf("expected remote error, got found=%v err=%v", found, err)
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("error should carry the remote cause, got %v", err)
	}

	// The server keeps answering after a failed lookup.
	_, _, err = s.Find(2, sagitta.Forward)
	if err == nil {
		t.Errorf("expected second remote error")
	}
	s.Close()
	if err := <-done; err != nil {
		t.Errorf("server failed: %v", err)
	}
}

func TestServeLocator(t *testing.T) {
	name := filepath.Join(t.TempDir(), "accounting")
	content := "# Version: 8.1.9\n" + sampleLine("1") + "\n" + sampleLine("2") + "\n"
	err := os.WriteFile(name, []byte(content), 0644)
	if err != nil {
		t.Fatalf("failed to write accounting file: %v", err)
	}
	s, done := startServer(t, sge.Locator{Path: name})
	defer func() {
		s.Close()
		<-done
	}()

	line, found, err := s.Find(2, sagitta.Backward)
	if err != nil || !found || line != sampleLine("2") {
		t.Errorf("expected job 2, got %q %v %v", line, found, err)
	}
	_, found, err = s.Find(3, sagitta.Forward)
	if err != nil || found {
		t.Errorf("expected job 3 to be missing, got %v %v", found, err)
	}
}

func TestServeBadRequest(t *testing.T) {
	var out strings.Builder
	err := Serve(strings.NewReader(`{"type": 7}`), &out, &fakeFinder{})
	if err == nil {
		t.Errorf("expected error for unknown request type")
	}
	err = Serve(strings.NewReader(`not json`), &out, &fakeFinder{})
	if err == nil {
		t.Errorf("expected error for malformed request")
	}
	err = Serve(strings.NewReader(""), &out, &fakeFinder{})
	if err != nil {
		t.Errorf("empty request stream should end cleanly, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("no responses expected, got %q", out.String())
	}
}

func TestHostAddr(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{in: "qmaster", want: "qmaster:22"},
		{in: "qmaster:2222", want: "qmaster:2222"},
		{in: "10.0.0.5", want: "10.0.0.5:22"},
		{in: "::1", want: "[::1]:22"},
		{in: "[::1]:2222", want: "[::1]:2222"},
	} {
		got := hostAddr(tc.in)
		if got != tc.want {
			t.Errorf("host %v: expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

func TestClientConfigKeyErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := clientConfig(Config{KeyFile: filepath.Join(dir, "id_rsa")})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected missing key error, got %v", err)
	}

	bad := filepath.Join(dir, "bad_key")
	err = os.WriteFile(bad, []byte("not a key"), 0600)
	if err != nil {
		t.Fatalf("failed to write key: %v", err)
	}
	_, err = clientConfig(Config{KeyFile: bad})
	if err == nil || !strings.Contains(err.Error(), "failed to parse private key") {
		t.Errorf("expected parse error, got %v", err)
	}
}
