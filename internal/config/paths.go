package config

import (
	"os"
	"path/filepath"
	"time"
)

const defaultBaseDir = ".cupid"

// Paths holds resolved filesystem paths for cupid data.
type Paths struct {
	Base     string // ~/.cupid
	Config   string // ~/.cupid/config.yaml
	Logs     string // ~/.cupid/logs
	Data     string // ~/.cupid/data
	Media    string // ~/.cupid/media, transient downloads
	Database string // ~/.cupid/data/cupid.db
}

// ResolvePaths computes all standard paths from the home directory.
// If CUPID_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("CUPID_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	data := filepath.Join(base, "data")
	return Paths{
		Base:     base,
		Config:   filepath.Join(base, "config.yaml"),
		Logs:     filepath.Join(base, "logs"),
		Data:     data,
		Media:    filepath.Join(base, "media"),
		Database: filepath.Join(data, "cupid.db"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Logs, p.Data, p.Media} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// CleanMedia removes downloads older than maxAge from the media directory.
// Photos are deleted once described, so anything left behind is from a run
// that did not shut down cleanly. A missing directory is not an error.
func (p Paths) CleanMedia(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(p.Media)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(p.Media, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
