// Package config loads run settings from a .env file and the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/bsm/mapdiff/rtree"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds the settings of a diff run.
type Config struct {
	MinZoom      int           // MAPDIFF_MIN_ZOOM, default 15
	Scratch      rtree.Backend // MAPDIFF_SCRATCH, default leveldb
	NodeCapacity int           // MAPDIFF_NODE_CAPACITY, default 16
	MetricsFile  string        // MAPDIFF_METRICS_FILE, off when empty
	TestDir      string        // MAPDIFF_TEST_DIR, default testdata
}

// Default returns the default settings.
func Default() *Config {
	return &Config{
		MinZoom:      15,
		Scratch:      rtree.LevelDB,
		NodeCapacity: 16,
		TestDir:      "testdata",
	}
}

// Load reads the given .env files, ".env" when none are named, and then
// the environment. Missing files are ignored; variables already set take
// precedence over file contents.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, name := range files {
		_ = godotenv.Load(name)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a config from a variable lookup.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	c := Default()

	if s, ok := lookup("MAPDIFF_MIN_ZOOM"); ok && s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > 31 {
			return nil, errors.Errorf("config: invalid MAPDIFF_MIN_ZOOM %q", s)
		}
		c.MinZoom = n
	}
	if s, ok := lookup("MAPDIFF_SCRATCH"); ok && s != "" {
		switch b := rtree.Backend(strings.ToLower(s)); b {
		case rtree.LevelDB, rtree.Badger:
			c.Scratch = b
		default:
			return nil, errors.Errorf("config: invalid MAPDIFF_SCRATCH %q", s)
		}
	}
	if s, ok := lookup("MAPDIFF_NODE_CAPACITY"); ok && s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 2 {
			return nil, errors.Errorf("config: invalid MAPDIFF_NODE_CAPACITY %q", s)
		}
		c.NodeCapacity = n
	}
	if s, ok := lookup("MAPDIFF_METRICS_FILE"); ok {
		c.MetricsFile = s
	}
	if s, ok := lookup("MAPDIFF_TEST_DIR"); ok && s != "" {
		c.TestDir = s
	}
	return c, nil
}
