package dataset

import (
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const cacheVersion = "v1"

// cacheEntry is the on-disk form of a loaded dataset plus the source file
// mtimes it was built from.
type cacheEntry struct {
	Dataset Dataset
	Stamps  map[string]time.Time
}

// LoadCached returns the dataset for files, reusing a gob cache under
// cacheDir when none of the three source files changed since it was
// written. Cache failures are logged and fall through to a fresh load;
// only the load itself can fail.
func LoadCached(ctx context.Context, files Files, cacheDir string, logger *slog.Logger) (*Dataset, error) {
	stamps, stampErr := fileStamps(files)

	if stampErr == nil {
		if ds, err := readCache(cacheFilename(cacheDir, files), stamps); err == nil {
			logger.Info("dataset loaded from cache", "records", len(ds.Combined))
			return ds, nil
		}
	}

	ds, err := Load(ctx, files)
	if err != nil {
		return nil, err
	}

	if stampErr == nil {
		if err := writeCache(cacheDir, cacheFilename(cacheDir, files), ds, stamps); err != nil {
			logger.Warn("failed to write dataset cache", "error", err)
		}
	}
	return ds, nil
}

func fileStamps(files Files) (map[string]time.Time, error) {
	stamps := make(map[string]time.Time, 3)
	for _, name := range []string{files.Transactions, files.Products, files.Customers} {
		info, err := os.Stat(name)
		if err != nil {
			return nil, err
		}
		stamps[name] = info.ModTime()
	}
	return stamps, nil
}

func cacheFilename(cacheDir string, files Files) string {
	sum := sha256.Sum256([]byte(files.Transactions + "\x00" + files.Products + "\x00" + files.Customers))
	return filepath.Join(cacheDir, fmt.Sprintf("dataset_%s_%s.gob", hex.EncodeToString(sum[:8]), cacheVersion))
}

func readCache(filename string, stamps map[string]time.Time) (*Dataset, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entry cacheEntry
	if err := gob.NewDecoder(f).Decode(&entry); err != nil {
		return nil, err
	}

	for name, mtime := range stamps {
		if !entry.Stamps[name].Equal(mtime) {
			return nil, fmt.Errorf("cache stale for %s", name)
		}
	}
	return &entry.Dataset, nil
}

func writeCache(cacheDir, filename string, ds *Dataset, stamps map[string]time.Time) error {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(cacheEntry{Dataset: *ds, Stamps: stamps})
}
