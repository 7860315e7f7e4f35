package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/clemsonciti/sagitta"
	"github.com/clemsonciti/sagitta/recorder"
	"github.com/clemsonciti/sagitta/remote"
	"github.com/clemsonciti/sagitta/sge"
)

var (
	// These will get overridden goreleaser.
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// baselineJobID is looked up when neither an argument nor $JOB_ID names a job.
const baselineJobID = 1

const (
	exitError    = 1
	exitNotFound = 2
)

var debug = flag.Bool("debug", false, "Enable debug logging.")
var showVersion = flag.Bool("version", false, "Show version and exit.")
var showFields = flag.Bool("fields", false, "List the accounting file columns and exit.")
var configFlag = flag.String("config", "", "Config file (default $SAGITTA_CONFIG or ~/.config/sagitta/config.yaml).")
var reverse = flag.Bool("reverse", false, "Scan from the end of the file. Faster for recently finished jobs.")
var preamble = flag.Int("preamble", 0, "Number of header lines at the start of the file to ignore.")
var maxLineSize = flag.String("max-line-size", "", "Longer lines are skipped as malformed, e.g. 1mb.")
var format = flag.String("format", "", "Output format (text/yaml/json).")
var record = flag.Bool("record", false, "Store the decoded job in the record DB.")
var recordDB = flag.String("record-db", "", "Location of record DB (default ~/.local/share/sagitta.db).")
var load = flag.Bool("load", false, "Treat FILE as a record DB written with -record instead of an accounting file.")
var host = flag.String("host", "", "Look the job up on this host over ssh. FILE is a path on that host.")
var remoteUser = flag.String("remote-user", "", "User for -host (default current user).")
var remoteCommand = flag.String("remote-command", "", "Command that starts sagitta in serve mode on -host.")
var serve = flag.Bool("serve", false, "Answer lookup requests for FILE on stdin/stdout. Used by -host; not intended to be used directly.")

type app struct {
	config *config
	load   bool
	record bool
	out    io.Writer

	source sagitta.JobSource
	rec    *recorder.Recorder
	closer io.Closer
}

func (a *app) Close() {
	if a.closer != nil {
		a.closer.Close()
	}
	if a.rec != nil {
		a.rec.Close()
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: sagitta [options] FILE [JOBID]\n\n")
	fmt.Fprintf(out, "FILE is a Grid Engine accounting file, here %v.\n", sge.AccountingFile())
	fmt.Fprintf(out, "JOBID defaults to $JOB_ID, then %v.\n\nOptions:\n", baselineJobID)
	flag.PrintDefaults()
}

// applyFlags lets flags given on the command line win over the config file.
func applyFlags(cfg *config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "reverse":
			cfg.Reverse = *reverse
		case "preamble":
			cfg.Preamble = *preamble
		case "max-line-size":
			cfg.MaxLineSize = *maxLineSize
		case "format":
			cfg.Format = *format
		case "record-db":
			cfg.RecordDB = *recordDB
		case "host":
			cfg.RemoteHost = *host
		case "remote-user":
			cfg.RemoteUser = *remoteUser
		case "remote-command":
			cfg.RemoteCommand = *remoteCommand
		}
	})
}

func (a *app) locator(path string) (sge.Locator, error) {
	maxLine, err := sagitta.ParseBytes(a.config.MaxLineSize)
	if err != nil {
		return sge.Locator{}, fmt.Errorf("invalid max line size: %w", err)
	}
	if a.config.Preamble < 0 {
		return sge.Locator{}, fmt.Errorf("invalid preamble %v", a.config.Preamble)
	}
	return sge.Locator{
		Path:        path,
		Preamble:    a.config.Preamble,
		MaxLineSize: int(maxLine),
	}, nil
}

func (a *app) direction() sagitta.Direction {
	if a.config.Reverse {
		return sagitta.Backward
	}
	return sagitta.Forward
}

// openSource picks where the job comes from: a record DB, a remote host or
// the local accounting file.
func (a *app) openSource(path string) error {
	if a.load {
		slog.Debug("loading job from record db", "filename", path)
		rec, err := recorder.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open record db: %w", err)
		}
		a.source = rec
		a.closer = rec
		return nil
	}
	if a.config.RemoteHost != "" {
		cmd := a.config.RemoteCommand
		if a.config.Preamble > 0 {
			cmd += fmt.Sprintf(" -preamble %d", a.config.Preamble)
		}
		cmd += " -max-line-size " + shellQuote(a.config.MaxLineSize) + " " + shellQuote(path)
		session, err := remote.Dial(remote.Config{
			Host:           a.config.RemoteHost,
			User:           a.config.RemoteUser,
			KeyFile:        a.config.SSHKey,
			KnownHostsFile: a.config.KnownHosts,
			Command:        cmd,
		})
		if err != nil {
			return err
		}
		a.source = session
		a.closer = session
		return nil
	}
	l, err := a.locator(path)
	if err != nil {
		return err
	}
	a.source = sge.NewJobSource(l)
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func getJobID(args []string) (int64, error) {
	var raw string
	if len(args) > 1 {
		raw = args[1]
	} else {
		raw = os.Getenv("JOB_ID")
	}
	if raw == "" {
		return baselineJobID, nil
	}
	jobID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid job ID %q: %w", raw, err)
	}
	return jobID, nil
}

func printFields() {
	for i, c := range sagitta.Schema {
		fmt.Printf("%3d  %-20v %v\n", i, c.Name, c.Kind)
	}
}

func runServe(a *app, path string) error {
	l, err := a.locator(path)
	if err != nil {
		return err
	}
	return remote.Serve(os.Stdin, os.Stdout, l)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	logOpts := slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if *debug {
		logOpts.Level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &logOpts)))
	slog.Debug("sagitta started", "version", buildVersion, "dateBuilt", buildDate, "commitBuilt", buildCommit)

	if *showVersion {
		fmt.Printf("sagitta %v git-%v. Built %v\n", buildVersion, buildCommit, buildDate)
		os.Exit(0)
	}
	if *showFields {
		printFields()
		os.Exit(0)
	}
	if len(args) < 1 || len(args) > 2 {
		usage()
		os.Exit(exitError)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Error("failed to find home directory", "err", err)
		os.Exit(exitError)
	}
	var username string
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	defaults, err := defaultConfig(homeDir, username)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(exitError)
	}
	a := app{load: *load, record: *record, out: os.Stdout}
	configName, explicit := configFilename(*configFlag, homeDir)
	a.config, err = loadConfig(configName, explicit, defaults)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(exitError)
	}
	applyFlags(a.config)
	path := args[0]

	if *serve {
		err = runServe(&a, path)
		if err != nil {
			slog.Error("serve failed", "err", err)
			os.Exit(exitError)
		}
		return
	}

	jobID, err := getJobID(args)
	if err != nil {
		slog.Error("failed to get job ID", "err", err)
		os.Exit(exitError)
	}
	os.Exit(a.run(path, jobID))
}

// run looks the job up and prints it, returning the exit status.
func (a *app) run(path string, jobID int64) int {
	defer a.Close()

	err := a.openSource(path)
	if err != nil {
		slog.Error("failed to open job source", "err", err)
		return exitError
	}
	if a.record {
		slog.Debug("opening record file", "filename", a.config.RecordDB)
		a.rec, err = recorder.New(a.config.RecordDB)
		if err != nil {
			slog.Error("failed to start record db", "err", err)
			return exitError
		}
	}

	dir := a.direction()
	slog.Debug("looking up job", "jobID", jobID, "file", path, "direction", dir)
	job, found, err := a.source.GetJobByID(jobID, dir)
	if err != nil {
		slog.Error("failed to get job", "jobID", jobID, "err", err)
		return exitError
	}
	if !found {
		fmt.Fprintf(a.out, "No job with ID %v in %v.\n", jobID, path)
		return exitNotFound
	}

	if a.rec != nil {
		err = a.rec.RecordJob(job)
		if err != nil {
			slog.Error("failed to write job to db", "err", err)
		}
	}

	out, err := sagitta.Marshal(a.config.Format, job)
	if err != nil {
		slog.Error("failed to render job", "err", err)
		return exitError
	}
	_, err = a.out.Write(out)
	if err != nil {
		slog.Error("failed to write job", "err", err)
		return exitError
	}
	return 0
}
