package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

var (
	// Default configuration values. These can be overridden with -ldflags.

	defaultPreamble      = "0"
	defaultReverse       = "false"
	defaultMaxLineSize   = "1mb"
	defaultRemoteCommand = "sagitta -serve"
	defaultFormat        = "text"
)

type config struct {
	Preamble    int    `yaml:"preamble"`
	Reverse     bool   `yaml:"reverse"`
	MaxLineSize string `yaml:"max_line_size"`
	Format      string `yaml:"format"`

	RecordDB string `yaml:"record_db"`

	RemoteHost    string `yaml:"remote_host"`
	RemoteUser    string `yaml:"remote_user"`
	RemoteCommand string `yaml:"remote_command"`
	SSHKey        string `yaml:"ssh_key"`
	KnownHosts    string `yaml:"known_hosts"`
}

func defaultConfig(homeDir, username string) (*config, error) {
	preamble, err := strconv.Atoi(defaultPreamble)
	if err != nil {
		return nil, fmt.Errorf("failed to parse defaultPreamble: %w", err)
	}
	reverse, err := strconv.ParseBool(defaultReverse)
	if err != nil {
		return nil, fmt.Errorf("failed to parse defaultReverse: %w", err)
	}
	return &config{
		Preamble:      preamble,
		Reverse:       reverse,
		MaxLineSize:   defaultMaxLineSize,
		Format:        defaultFormat,
		RecordDB:      filepath.Join(homeDir, ".local", "share", "sagitta.db"),
		RemoteUser:    username,
		RemoteCommand: defaultRemoteCommand,
		SSHKey:        filepath.Join(homeDir, ".ssh", "id_rsa"),
		KnownHosts:    filepath.Join(homeDir, ".ssh", "known_hosts"),
	}, nil
}

// configFilename picks the config file: the -config flag, then
// $SAGITTA_CONFIG, then ~/.config/sagitta/config.yaml.
func configFilename(flagValue, homeDir string) (name string, explicit bool) {
	if flagValue != "" {
		return flagValue, true
	}
	if env := os.Getenv("SAGITTA_CONFIG"); env != "" {
		return env, true
	}
	return filepath.Join(homeDir, ".config", "sagitta", "config.yaml"), false
}

// loadConfig applies the YAML file on top of the defaults. A missing file is
// only an error if it was asked for explicitly.
func loadConfig(filename string, explicit bool, defaults *config) (*config, error) {
	cfg := *defaults
	content, err := os.ReadFile(filename)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		slog.Debug("no config file", "filename", filename)
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %v: %w", filename, err)
	}
	err = yaml.Unmarshal(content, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %v: %w", filename, err)
	}
	if cfg.Preamble < 0 {
		return nil, fmt.Errorf("invalid preamble %v in config file %v", cfg.Preamble, filename)
	}
	slog.Debug("loaded config file", "filename", filename)
	return &cfg, nil
}
