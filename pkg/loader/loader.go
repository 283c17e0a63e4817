//go:build unix

// Package loader discovers platform-suffixed executables and keeps each one
// under its own Monitor.
package loader

import (
	"context"
	"os"
	"path/filepath"
	goruntime "runtime"
	"sort"
	"sync"

	"github.com/core-tools/hsu-engine/pkg/errors"
	"github.com/core-tools/hsu-engine/pkg/logging"
	"github.com/core-tools/hsu-engine/pkg/managedprocess"
	"github.com/core-tools/hsu-engine/pkg/reaper"

	"github.com/bmatcuk/doublestar/v4"
)

// archNames maps Go architecture names to the ones used in executable suffixes.
var archNames = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
	"386":   "x86",
}

// Arch returns the executable suffix name for a Go architecture.
func Arch(goarch string) string {
	if name, ok := archNames[goarch]; ok {
		return name
	}
	return goarch
}

// Platform is the "<os>-<arch>" pair every discovered executable ends with.
type Platform struct {
	OS   string `yaml:"os"`
	Arch string `yaml:"arch"`
}

// HostPlatform describes the running process.
func HostPlatform() Platform {
	return Platform{OS: goruntime.GOOS, Arch: Arch(goruntime.GOARCH)}
}

// Pattern returns "<base>/*-<os>-<arch>".
func Pattern(base string, platform Platform) string {
	return filepath.Join(base, "*-"+platform.OS+"-"+platform.Arch)
}

// Discover expands pattern. Matching is case-sensitive and "*" also matches
// names starting with a dot. Results are sorted.
func Discover(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.NewValidationError("invalid discovery pattern", err).WithContext("pattern", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

type Options struct {
	// Address is handed to every spawned executable.
	Address  string
	Platform Platform
	Monitor  managedprocess.MonitorOptions
}

// Loader owns the Monitors it started.
type Loader struct {
	name    string
	options Options
	reaper  *reaper.Reaper
	logger  logging.Logger

	mutex    sync.Mutex
	monitors []*managedprocess.Monitor
	running  sync.WaitGroup
}

func New(name string, r *reaper.Reaper, options Options, logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	if options.Platform.OS == "" || options.Platform.Arch == "" {
		host := HostPlatform()
		if options.Platform.OS == "" {
			options.Platform.OS = host.OS
		}
		if options.Platform.Arch == "" {
			options.Platform.Arch = host.Arch
		}
	}
	return &Loader{
		name:    name,
		options: options,
		reaper:  r,
		logger:  logger,
	}
}

// Load starts one Monitor per executable matching Pattern(base) and returns
// the matched paths without waiting for any of them. Entries that cannot be
// used are logged and skipped.
func (l *Loader) Load(ctx context.Context, base string) ([]string, error) {
	pattern := Pattern(base, l.options.Platform)
	l.logger.Infof("Discovering %s with pattern %s", l.name, pattern)

	matches, err := Discover(pattern)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(matches))
	for _, path := range matches {
		if err := checkExecutable(path); err != nil {
			l.logger.Errorf("Skipping %s: %v", path, err)
			continue
		}
		paths = append(paths, path)
		l.start(ctx, path)
	}

	l.logger.Infof("Loaded %d %s", len(paths), l.name)
	return paths, nil
}

// LoadExecutable starts a single Monitor for path.
func (l *Loader) LoadExecutable(ctx context.Context, path string) error {
	if err := checkExecutable(path); err != nil {
		return err
	}
	l.start(ctx, path)
	return nil
}

func (l *Loader) start(ctx context.Context, path string) {
	monitor := managedprocess.NewMonitor(managedprocess.ProcessDescription{
		ExecutablePath: path,
		Address:        l.options.Address,
	}, l.reaper, l.options.Monitor, l.logger)

	l.mutex.Lock()
	l.monitors = append(l.monitors, monitor)
	l.mutex.Unlock()

	l.running.Add(1)
	go func() {
		defer l.running.Done()
		if err := monitor.Run(ctx); err != nil {
			l.logger.Errorf("Supervision of %s ended: %v", path, err)
			return
		}
		l.logger.Infof("Supervision of %s ended", path)
	}()
	l.logger.Infof("Loaded %s", path)
}

// Monitors returns the started monitors in start order.
func (l *Loader) Monitors() []*managedprocess.Monitor {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	monitors := make([]*managedprocess.Monitor, len(l.monitors))
	copy(monitors, l.monitors)
	return monitors
}

// Stats snapshots every monitor.
func (l *Loader) Stats() []managedprocess.Stats {
	monitors := l.Monitors()
	stats := make([]managedprocess.Stats, 0, len(monitors))
	for _, monitor := range monitors {
		stats = append(stats, monitor.Stats())
	}
	return stats
}

// Wait blocks until every Monitor has returned.
func (l *Loader) Wait() {
	l.running.Wait()
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.NewIOError("cannot stat executable", err).WithContext("path", path)
	}
	if info.IsDir() {
		return errors.NewValidationError("path is a directory", nil).WithContext("path", path)
	}
	return nil
}
