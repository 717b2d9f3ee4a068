// Command mapdiff reduces a map container to the changes between two
// snapshots.
//
//	mapdiff <old> <new> <result>
//	mapdiff test
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bsm/mapdiff"
	"github.com/bsm/mapdiff/internal/config"
	"github.com/bsm/mapdiff/internal/logger"
	"github.com/bsm/mapdiff/internal/metrics"
	"github.com/pkg/errors"
)

const usage = "Usage: mapdiff <path to old obf> <path to new obf> <path to result obf>"

func main() {
	cfg, err := config.Load()
	l := logger.Setup()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}

	files, ok := resolveArgs(os.Args[1:], cfg.TestDir)
	if !ok {
		fmt.Println(usage)
		os.Exit(1)
	}

	if err := run(l, cfg, files); err != nil {
		l.Error("diff_failed", "err", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}

type inputs struct {
	Old, New, Result string
}

// resolveArgs maps the command line to input and output paths. The single
// argument "test" selects the fixtures in testDir.
func resolveArgs(args []string, testDir string) (inputs, bool) {
	switch {
	case len(args) == 1 && args[0] == "test":
		return inputs{
			Old:    filepath.Join(testDir, "Diff-start.obf"),
			New:    filepath.Join(testDir, "Diff-end.obf"),
			Result: filepath.Join(testDir, "diff.obf"),
		}, true
	case len(args) == 3:
		return inputs{Old: args[0], New: args[1], Result: args[2]}, true
	}
	return inputs{}, false
}

func run(l *slog.Logger, cfg *config.Config, files inputs) error {
	m := metrics.NewRun()

	for _, name := range []string{files.Old, files.New} {
		if _, err := os.Stat(name); err != nil {
			return errors.Wrapf(err, "input file %s", name)
		}
	}

	start := time.Now()
	baseline, err := load(l, m, "old", files.Old, cfg.MinZoom)
	if err != nil {
		return err
	}
	current, err := load(l, m, "new", files.New, cfg.MinZoom)
	if err != nil {
		return err
	}
	m.StageDuration.WithLabelValues("load").Set(time.Since(start).Seconds())

	start = time.Now()
	stats := mapdiff.Diff(baseline, current)
	m.StageDuration.WithLabelValues("diff").Set(time.Since(start).Seconds())
	m.ObserveDiff(stats)
	l.Info("diff_done",
		"ranges", stats.Ranges,
		"skipped_ranges", stats.SkippedRanges,
		"unchanged", stats.Unchanged,
		"modified", stats.Modified,
		"deleted", stats.Deleted,
		"added", stats.Added,
	)

	if err := os.Remove(files.Result); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove %s", files.Result)
	}

	start = time.Now()
	levels, err := current.WriteFile(files.Result, &mapdiff.WriteOptions{
		Backend:      cfg.Scratch,
		NodeCapacity: cfg.NodeCapacity,
	})
	if err != nil {
		return err
	}
	m.StageDuration.WithLabelValues("write").Set(time.Since(start).Seconds())
	m.ObserveLevels(levels)

	for _, lvl := range levels {
		geo := mapdiff.BoundsLatLng(lvl.Bounds)
		l.Info("level_written",
			"zoom", lvl.Range.String(),
			"features", lvl.Features,
			"lat_lo", geo.Lo().Lat.Degrees(),
			"lng_lo", geo.Lo().Lng.Degrees(),
			"lat_hi", geo.Hi().Lat.Degrees(),
			"lng_hi", geo.Hi().Lng.Degrees(),
		)
	}
	l.Info("result_written", "file", files.Result, "levels", len(levels))

	if cfg.MetricsFile != "" {
		m.LastSuccessful.SetToCurrentTime()
		if err := m.WriteFile(cfg.MetricsFile); err != nil {
			l.Warn("metrics_write_error", "file", cfg.MetricsFile, "err", err)
		}
	}
	return nil
}

func load(l *slog.Logger, m *metrics.Run, label, name string, minZoom int) (*mapdiff.Store, error) {
	s := mapdiff.NewStore()
	if err := s.Merge(nil, name); err != nil {
		return nil, err
	}
	s.FilterBelow(minZoom)

	m.Features.WithLabelValues(label).Set(float64(s.Count()))
	l.Info("input_loaded", "input", label, "file", name, "ranges", s.Len(), "features", s.Count())
	return s, nil
}
