package secrets

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/subosito/gotenv"
)

const (
	// DefaultPlatformFile is where the hosting platform mounts its secrets block.
	DefaultPlatformFile = ".streamlit/secrets.toml"
	// DefaultEnvFile is the developer-only override file.
	DefaultEnvFile = ".env"
)

// Source is one channel secrets can be read from.
type Source interface {
	Provenance() Provenance
	Lookup(name string) (string, bool)
}

// fileStore serves exact-case lookups from a parsed key/value file.
type fileStore struct {
	provenance Provenance
	values     map[string]string
}

type parseFunc func([]byte) (map[string]string, error)

// NewPlatformStore parses a TOML secrets block. Both top-level keys and
// dotted section keys ("email.smtp_pass") are addressable. A missing file
// yields an empty store.
func NewPlatformStore(path string) (Source, error) {
	values, err := readFile(path, parseTOML)
	if err != nil {
		return nil, fmt.Errorf("platform secrets %s: %w", path, err)
	}
	return &fileStore{provenance: ProvenancePlatform, values: values}, nil
}

// NewDotEnvFile parses a KEY=value override file. A missing file yields an
// empty source.
func NewDotEnvFile(path string) (Source, error) {
	values, err := readFile(path, parseDotEnv)
	if err != nil {
		return nil, fmt.Errorf("env file %s: %w", path, err)
	}
	return &fileStore{provenance: ProvenanceFile, values: values}, nil
}

// NewPlatformStoreFromBytes parses an in-memory TOML secrets block.
func NewPlatformStoreFromBytes(data []byte) (Source, error) {
	values, err := parseTOML(data)
	if err != nil {
		return nil, fmt.Errorf("platform secrets: %w", err)
	}
	return &fileStore{provenance: ProvenancePlatform, values: values}, nil
}

// NewDotEnvFromBytes parses in-memory KEY=value content.
func NewDotEnvFromBytes(data []byte) (Source, error) {
	values, err := parseDotEnv(data)
	if err != nil {
		return nil, fmt.Errorf("env file: %w", err)
	}
	return &fileStore{provenance: ProvenanceFile, values: values}, nil
}

func readFile(path string, parse parseFunc) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return parse(data)
}

func parseTOML(data []byte) (map[string]string, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse toml: %w", err)
	}
	values := make(map[string]string)
	flatten("", doc, values)
	return values, nil
}

// flatten records every scalar under its dotted path, keeping key case.
func flatten(prefix string, table map[string]any, out map[string]string) {
	for key, value := range table {
		if prefix != "" {
			key = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(key, v, out)
		case string:
			out[key] = v
		case []any:
			// arrays are not addressable as a single secret
		default:
			out[key] = fmt.Sprint(v)
		}
	}
}

func parseDotEnv(data []byte) (map[string]string, error) {
	env, err := gotenv.StrictParse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse dotenv: %w", err)
	}
	return env, nil
}

func (s *fileStore) Provenance() Provenance {
	return s.provenance
}

func (s *fileStore) Lookup(name string) (string, bool) {
	value, ok := s.values[name]
	return value, ok
}

// EnvSource reads the process environment.
type EnvSource struct {
	lookup func(string) (string, bool)
}

// NewEnvSource returns a source backed by os.LookupEnv.
func NewEnvSource() *EnvSource {
	return &EnvSource{lookup: os.LookupEnv}
}

// NewEnvSourceFrom returns a source backed by a fixed map, for tests and
// embedding.
func NewEnvSourceFrom(env map[string]string) *EnvSource {
	return &EnvSource{lookup: func(name string) (string, bool) {
		value, ok := env[name]
		return value, ok
	}}
}

func (s *EnvSource) Provenance() Provenance {
	return ProvenanceEnv
}

func (s *EnvSource) Lookup(name string) (string, bool) {
	return s.lookup(name)
}

// Paths locates the file-backed sources.
type Paths struct {
	PlatformFile string
	EnvFile      string
}

// DefaultSources builds the fixed priority chain: platform store, process
// environment, local override file.
func DefaultSources(paths Paths) ([]Source, error) {
	platform, err := NewPlatformStore(paths.PlatformFile)
	if err != nil {
		return nil, err
	}
	dotenv, err := NewDotEnvFile(paths.EnvFile)
	if err != nil {
		return nil, err
	}
	return []Source{platform, NewEnvSource(), dotenv}, nil
}
