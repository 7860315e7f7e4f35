package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clemsonciti/sagitta"
)

func line(jobID, name string) string {
	fields := []string{
		"all.q", "node010", "users", "erin", name, jobID, "sge", "0",
		"1700000000", "1700000010", "1700000070", "0", "0",
		"60", "55.5", "1.25", "10240", "0", "0", "0", "0",
		"100", "0", "0", "8", "16", "0", "0", "0", "20", "4",
		"NONE", "defaultdepartment", "NONE", "1", "0",
		"56.75", "0.5", "0.01", "NONE", "0", "NONE", "104857600",
		"0", "0",
	}
	return strings.Join(fields, ":")
}

func testApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	home := t.TempDir()
	cfg, err := defaultConfig(home, "erin")
	if err != nil {
		t.Fatalf("failed to build default config: %v", err)
	}
	var out bytes.Buffer
	return &app{config: cfg, out: &out}, &out
}

func writeAccounting(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "accounting")
	err := os.WriteFile(name, []byte(content), 0644)
	if err != nil {
		t.Fatalf("failed to write accounting file: %v", err)
	}
	return name
}

func TestRun(t *testing.T) {
	bad := strings.Replace(line("3", "bad"), ":60:", ":x:", 1)
	name := writeAccounting(t, "# Version: 8.1.9\n"+line("1", "one")+"\n"+line("2", "two")+"\n"+bad+"\n")

	for _, reverse := range []bool{false, true} {
		a, out := testApp(t)
		a.config.Reverse = reverse
		code := a.run(name, 2)
		if code != 0 {
			t.Errorf("reverse=%v: expected exit 0, got %v", reverse, code)
		}
		if !strings.Contains(out.String(), "Job Name: two") {
			t.Errorf("reverse=%v: report does not show job two:\n%v", reverse, out.String())
		}
	}

	a, out := testApp(t)
	if code := a.run(name, 4); code != exitNotFound {
		t.Errorf("expected not found exit code, got %v", code)
	}
	if !strings.Contains(out.String(), "No job with ID 4") {
		t.Errorf("unexpected not found message %q", out.String())
	}

	a, _ = testApp(t)
	if code := a.run(name, 3); code != exitError {
		t.Errorf("expected decode failure to exit with error, got %v", code)
	}

	a, _ = testApp(t)
	if code := a.run(filepath.Join(t.TempDir(), "missing"), 1); code != exitError {
		t.Errorf("expected missing file to exit with error, got %v", code)
	}

	a, _ = testApp(t)
	a.config.MaxLineSize = "lots"
	if code := a.run(name, 1); code != exitError {
		t.Errorf("expected bad max line size to exit with error, got %v", code)
	}
}

func TestRunRecordAndLoad(t *testing.T) {
	name := writeAccounting(t, line("42", "recorded")+"\n")
	db := filepath.Join(t.TempDir(), "db", "records.db")

	a, _ := testApp(t)
	a.record = true
	a.config.RecordDB = db
	if code := a.run(name, 42); code != 0 {
		t.Fatalf("expected exit 0 while recording, got %v", code)
	}

	a, out := testApp(t)
	a.load = true
	a.config.Format = "json"
	if code := a.run(db, 42); code != 0 {
		t.Fatalf("expected exit 0 loading from db, got %v", code)
	}
	if !strings.Contains(out.String(), `"job_name": "recorded"`) {
		t.Errorf("loaded job missing from output:\n%v", out.String())
	}

	a, _ = testApp(t)
	a.load = true
	if code := a.run(db, 43); code != exitNotFound {
		t.Errorf("expected job 43 to be missing from db, got %v", code)
	}

	missing := filepath.Join(t.TempDir(), "sub", "missing.db")
	a, out = testApp(t)
	a.load = true
	if code := a.run(missing, 42); code != exitError {
		t.Errorf("expected missing db to exit with error, got %v", code)
	}
	if out.Len() != 0 {
		t.Errorf("missing db should not print a report, got %q", out.String())
	}
	if _, err := os.Stat(filepath.Dir(missing)); !os.IsNotExist(err) {
		t.Errorf("loading a missing db created files, stat gave %v", err)
	}
}

func TestGetJobID(t *testing.T) {
	t.Setenv("JOB_ID", "")
	for _, tc := range []struct {
		args      []string
		env       string
		want      int64
		shouldErr bool
	}{
		{args: []string{"file", "17"}, want: 17},
		{args: []string{"file"}, want: baselineJobID},
		{args: []string{"file"}, env: "99", want: 99},
		{args: []string{"file", "5"}, env: "99", want: 5},
		{args: []string{"file", "five"}, shouldErr: true},
		{args: []string{"file"}, env: "x", shouldErr: true},
	} {
		t.Setenv("JOB_ID", tc.env)
		got, err := getJobID(tc.args)
		if tc.shouldErr {
			if err == nil {
				t.Errorf("args %v env %q: expected error", tc.args, tc.env)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("args %v env %q: expected %v, got %v (%v)", tc.args, tc.env, tc.want, got, err)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	home := t.TempDir()
	defaults, err := defaultConfig(home, "erin")
	if err != nil {
		t.Fatalf("failed to build default config: %v", err)
	}
	if defaults.MaxLineSize != "1mb" || defaults.Format != "text" || defaults.Reverse {
		t.Errorf("unexpected defaults %+v", defaults)
	}

	cfg, err := loadConfig(filepath.Join(home, "none.yaml"), false, defaults)
	if err != nil {
		t.Fatalf("missing implicit config should not fail: %v", err)
	}
	if *cfg != *defaults {
		t.Errorf("missing config changed the defaults: %+v", cfg)
	}
	_, err = loadConfig(filepath.Join(home, "none.yaml"), true, defaults)
	if err == nil {
		t.Errorf("missing explicit config should fail")
	}

	name := filepath.Join(home, "config.yaml")
	err = os.WriteFile(name, []byte("reverse: true\npreamble: 4\nformat: yaml\nremote_host: qmaster\n"), 0644)
	if err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg, err = loadConfig(name, true, defaults)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if !cfg.Reverse || cfg.Preamble != 4 || cfg.Format != "yaml" || cfg.RemoteHost != "qmaster" {
		t.Errorf("config values not applied: %+v", cfg)
	}
	if cfg.MaxLineSize != "1mb" || cfg.RemoteUser != "erin" {
		t.Errorf("unset keys lost their defaults: %+v", cfg)
	}
	if defaults.Reverse {
		t.Errorf("loading a config modified the defaults")
	}

	err = os.WriteFile(name, []byte("preamble: -1\n"), 0644)
	if err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	_, err = loadConfig(name, true, defaults)
	if err == nil {
		t.Errorf("negative preamble should fail")
	}
}

func TestDirection(t *testing.T) {
	a, _ := testApp(t)
	if a.direction() != sagitta.Forward {
		t.Errorf("expected forward by default")
	}
	a.config.Reverse = true
	if a.direction() != sagitta.Backward {
		t.Errorf("expected backward when reverse is set")
	}
}
