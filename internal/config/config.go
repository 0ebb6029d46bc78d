// Package config loads the service configuration from YAML and validates it
// against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is the full service configuration. Durations are written as Go
// duration strings ("30s") in YAML.
type Config struct {
	Service Service `yaml:"service" json:"service"`
	Store   Store   `yaml:"store" json:"store"`
	Engine  Engine  `yaml:"engine" json:"engine"`
	Server  Server  `yaml:"server" json:"server"`
	Journal Journal `yaml:"journal" json:"journal"`
	Events  Events  `yaml:"events" json:"events"`
	Log     Log     `yaml:"log" json:"log"`
}

// Service identifies the deployment.
type Service struct {
	// RootIRI is the base of every minted IRI. No trailing slash.
	RootIRI       string `yaml:"root_iri" json:"root_iri"`
	ID            string `yaml:"id" json:"id"`
	DefaultBranch string `yaml:"default_branch" json:"default_branch"`
}

// Store locates the SPARQL 1.1 Protocol endpoints.
type Store struct {
	QueryURL  string        `yaml:"query_url" json:"query_url"`
	UpdateURL string        `yaml:"update_url" json:"update_url"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

type Engine struct {
	CleanupTimeout time.Duration `yaml:"cleanup_timeout" json:"cleanup_timeout"`
}

// Server configures the HTTP surface. UserHeader carries the actor id set
// by the authenticating proxy.
type Server struct {
	Addr       string `yaml:"addr" json:"addr"`
	UserHeader string `yaml:"user_header" json:"user_header"`
}

// Journal configures the SQLite transaction journal. An empty Path
// disables it.
type Journal struct {
	Path string `yaml:"path" json:"path"`
}

// Events configures commit publication. An empty NATSURL disables it.
type Events struct {
	NATSURL       string `yaml:"nats_url" json:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix" json:"subject_prefix"`
}

type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used for every field a file leaves
// unset.
func Default() Config {
	return Config{
		Service: Service{
			RootIRI:       "http://localhost:8080",
			ID:            "mms",
			DefaultBranch: "master",
		},
		Store: Store{
			QueryURL:  "http://localhost:3030/ds/query",
			UpdateURL: "http://localhost:3030/ds/update",
			Timeout:   30 * time.Second,
		},
		Engine: Engine{CleanupTimeout: 10 * time.Second},
		Server: Server{
			Addr:       ":8080",
			UserHeader: "X-MMS-User",
		},
		Events: Events{SubjectPrefix: "mms.events"},
		Log:    Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and validates the result. An empty
// path yields the validated defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return &cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected so typos surface instead of silently taking defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidationError reports the first schema violation.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "invalid config: " + e.Message
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Path, e.Message)
}

// Validate checks c against the schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.Unify(ctx.Encode(c))
	err := v.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	return &ValidationError{
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
}

// SlogLevel maps Log.Level to a slog level.
func (l Log) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger writing to w.
func (l Log) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
