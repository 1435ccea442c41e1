package cli

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"

	"github.com/matzehuels/diagramgen/pkg/cache"
	"github.com/matzehuels/diagramgen/pkg/errors"
)

// lockOutput takes an exclusive lock for runs writing under outputDir. A
// second run for the same directory fails instead of interleaving writes.
// Without a usable cache directory the run proceeds unlocked.
func lockOutput(outputDir string, logger *log.Logger) (unlock func(), err error) {
	dir, err := cacheDir()
	if err != nil {
		logger.Debug("No cache directory, running without lock", "error", err)
		return func() {}, nil
	}
	return lockOutputIn(filepath.Join(dir, lockDir), outputDir, logger)
}

func lockOutputIn(locks, outputDir string, logger *log.Logger) (func(), error) {
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		abs = outputDir
	}
	if err := os.MkdirAll(locks, 0755); err != nil {
		logger.Debug("Cannot create lock directory, running without lock", "error", err)
		return func() {}, nil
	}

	path := filepath.Join(locks, cache.Hash([]byte(abs))[:16]+".lock")
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "lock output directory").WithPath(path)
	}
	if !ok {
		return nil, errors.New(errors.ErrCodeDestination, "another diagramgen run is writing to %s", abs).WithPath(abs)
	}
	logger.Debug("Locked output directory", "dir", abs, "lock", path)

	return func() {
		if err := fl.Unlock(); err != nil {
			logger.Warn("Failed to release lock", "lock", path, "error", err)
		}
	}, nil
}
