package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/clemsonciti/sagitta"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Config describes how to reach the host that holds the accounting file.
type Config struct {
	Host           string
	User           string
	KeyFile        string
	KnownHostsFile string

	// Command starts sagitta in serve mode on the remote host, e.g.
	// "sagitta -serve /opt/sge/default/common/accounting".
	Command string
}

// Session is a running remote sagitta process. It implements
// sagitta.JobSource, so remote lookups decode locally.
type Session struct {
	sshConn    *ssh.Client
	sshSession *ssh.Session
	reqWriter  io.WriteCloser
	resDecoder *json.Decoder
	host       string
}

// Dial connects to c.Host and starts c.Command.
func Dial(c Config) (*Session, error) {
	var s Session
	var err error
	s.host = c.Host
	s.sshConn, err = connectToHost(c)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to host %v with ssh: %w", c.Host, err)
	}
	s.sshSession, err = s.sshConn.NewSession()
	if err != nil {
		s.sshConn.Close()
		return nil, fmt.Errorf("failed create session on host %v with ssh: %w", c.Host, err)
	}
	s.reqWriter, err = s.sshSession.StdinPipe()
	if err != nil {
		s.closeConn()
		return nil, fmt.Errorf("failed create req writer on host %v with ssh: %w", c.Host, err)
	}
	resReader, err := s.sshSession.StdoutPipe()
	if err != nil {
		s.closeConn()
		return nil, fmt.Errorf("failed create res reader on host %v with ssh: %w", c.Host, err)
	}
	s.resDecoder = json.NewDecoder(resReader)
	slog.Debug("starting remote lookup server", "host", c.Host, "cmd", c.Command)
	err = s.sshSession.Start(c.Command)
	if err != nil {
		s.closeConn()
		return nil, fmt.Errorf("failed start cmd=%v on host %v with ssh: %w", c.Command, c.Host, err)
	}
	return &s, nil
}

// newSession wraps an already running server. Used by tests.
func newSession(host string, w io.WriteCloser, r io.Reader) *Session {
	return &Session{host: host, reqWriter: w, resDecoder: json.NewDecoder(r)}
}

// Find asks the remote host for the raw accounting line of jobID.
func (s *Session) Find(jobID int64, dir sagitta.Direction) (string, bool, error) {
	payload, err := json.Marshal(sagitta.LookupFindPayload{
		JobID:     jobID,
		Direction: dir,
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to write payload for find request: %w", err)
	}
	err = json.NewEncoder(s.reqWriter).Encode(sagitta.LookupRequest{
		RequestType: sagitta.LookupRequestTypeFind,
		Payload:     payload,
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to send find request to %v: %w", s.host, err)
	}
	var res sagitta.LookupResponse
	err = s.resDecoder.Decode(&res)
	if err != nil {
		return "", false, fmt.Errorf("failed to decode find response from %v: %w", s.host, err)
	}
	if res.Error != "" {
		return "", false, fmt.Errorf("lookup on %v failed: %w", s.host, errors.New(res.Error))
	}
	return res.Line, res.Found, nil
}

func (s *Session) GetJobByID(jobID int64, dir sagitta.Direction) (*sagitta.JobRecord, bool, error) {
	line, found, err := s.Find(jobID, dir)
	if err != nil || !found {
		return nil, false, err
	}
	rec, err := sagitta.DecodeLine(line)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode accounting line for job %v from %v: %w", jobID, s.host, err)
	}
	return rec, true, nil
}

func (s *Session) Close() error {
	// Ask nicely...
	err := json.NewEncoder(s.reqWriter).Encode(sagitta.LookupRequest{
		RequestType: sagitta.LookupRequestTypeExit,
	})
	if err != nil {
		slog.Debug("failed to send exit request", "host", s.host, "err", err)
	}
	// Then clean up forcibly.
	s.reqWriter.Close()
	s.closeConn()
	return nil
}

func (s *Session) closeConn() {
	if s.sshSession != nil {
		s.sshSession.Close()
	}
	if s.sshConn != nil {
		s.sshConn.Close()
	}
}

// clientConfig authenticates with c.KeyFile and only trusts host keys listed
// in c.KnownHostsFile.
func clientConfig(c Config) (*ssh.ClientConfig, error) {
	key, err := os.ReadFile(c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", c.KeyFile, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", c.KeyFile, err)
	}
	trusted, err := knownhosts.New(c.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts %s: %w", c.KnownHostsFile, err)
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: trusted,
	}, nil
}

// hostAddr adds the ssh port to host unless it already names one.
func hostAddr(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, "22")
}

func connectToHost(c Config) (*ssh.Client, error) {
	cfg, err := clientConfig(c)
	if err != nil {
		return nil, err
	}
	addr := hostAddr(c.Host)
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to dial host %s: %w", addr, err)
	}
	return client, nil
}
