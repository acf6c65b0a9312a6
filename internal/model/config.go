package model

import (
	"io"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

// Enum helpers (optional).
const (
	LogStderrDest  = "stderr"
	LogStdoutDest  = "stdout"
	LogDiscardDest = "discard"
)

// Defaults applied when the optional service fields are missing.
const (
	DefaultAddr   = "localhost:5000"
	DefaultLogCap = 10000
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

type Config struct {
	Version    int        `json:"version" yaml:"version"` // fixed 0 for now
	Folders    []string   `json:"folders,omitempty" yaml:"folders,omitempty"`
	Extensions []string   `json:"extensions,omitempty" yaml:"extensions,omitempty"` // nil => {".py", ".sh"}
	Service    Service    `json:"service" yaml:"service"`
	Schedules  []Schedule `json:"schedules,omitempty" yaml:"schedules,omitempty"`
}

// Service holds the runtime settings of the web API and supervisor.
// Every field is optional: nil Addr means DefaultAddr, nil Log means
// stderr, nil DataDir means the user config dir and nil LogCap means
// DefaultLogCap.
type Service struct {
	Addr    *string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Verbose *bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Log     *string `json:"log,omitempty" yaml:"log,omitempty"`
	DataDir *string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	LogCap  *int    `json:"log_cap,omitempty" yaml:"log_cap,omitempty"`
}

// Schedule declares a recurring run of one script.
// Exactly one of Cron or Every is set.
type Schedule struct {
	Path  string `json:"path" yaml:"path"`
	Cron  string `json:"cron,omitempty" yaml:"cron,omitempty"`
	Every string `json:"every,omitempty" yaml:"every,omitempty"`
}

// DefaultConfig is written on a first start when no config file exists.
func DefaultConfig() Config {
	return Config{
		Version: 0,
		Service: Service{},
	}
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	return out, nil
}
