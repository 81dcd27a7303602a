// Package config loads a PEBBL project's pebbl.toml manifest: a toml-tag
// struct decoded with directory-walk discovery and zero-value defaulting.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest is the parsed contents of a pebbl.toml file.
type Manifest struct {
	Project Project `toml:"project"`
	Run     Run     `toml:"run"`
	Cache   Cache   `toml:"cache"`

	// Dir is the directory containing the pebbl.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project holds project metadata.
type Project struct {
	Name string `toml:"name"`
}

// Run configures the entry point and GC tuning.
type Run struct {
	Entry               string `toml:"entry"`
	GCInitialThreshold int    `toml:"gc_initial_threshold"`
}

// Cache configures the compiled-chunk cache (internal/cache).
type Cache struct {
	Dir     string `toml:"dir"`
	Enabled bool   `toml:"enabled"`
}

const manifestFilename = "pebbl.toml"

// Load parses pebbl.toml from dir and applies defaults for any unset field.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, manifestFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	applyDefaults(&m)
	return &m, nil
}

func applyDefaults(m *Manifest) {
	if m.Run.Entry == "" {
		m.Run.Entry = "main.pebbl"
	}
	if m.Run.GCInitialThreshold == 0 {
		m.Run.GCInitialThreshold = 8
	}
	if m.Cache.Dir == "" {
		m.Cache.Dir = filepath.Join(m.Dir, ".pebbl", "cache")
	}
}

// FindAndLoad walks up from startDir looking for a pebbl.toml file, loading
// the first one found. Returns a nil Manifest (and nil error) if none is
// found anywhere up to the filesystem root.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		path := filepath.Join(dir, manifestFilename)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path to the manifest's configured entry
// source file.
func (m *Manifest) EntryPath() string {
	return filepath.Join(m.Dir, m.Run.Entry)
}
