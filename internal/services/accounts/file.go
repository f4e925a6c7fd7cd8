package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/plexus-ai/plexus-metrics/internal/logger"
	"github.com/plexus-ai/plexus-metrics/internal/models"
)

const formatVersion = 1

var errMissing = errors.New("accounts file does not exist")

// document is the on-disk layout.
type document struct {
	Accounts      []models.Account `json:"accounts"`
	ActiveAccount string           `json:"activeAccount,omitempty"`
	Version       int              `json:"version,omitempty"`
}

// decode accepts the document object or a bare array of accounts, and
// normalizes the active reference to a tracked ID.
func decode(data []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		var list []models.Account
		if json.Unmarshal(data, &list) != nil {
			return document{}, fmt.Errorf("parse accounts file: %w", err)
		}
		doc = document{Accounts: list}
	}
	if doc.Accounts == nil {
		doc.Accounts = []models.Account{}
	}

	active := ""
	for _, acc := range doc.Accounts {
		if doc.ActiveAccount != "" && (acc.ID == doc.ActiveAccount || acc.Key == doc.ActiveAccount) {
			active = acc.ID
			break
		}
	}
	if active == "" && len(doc.Accounts) > 0 {
		active = doc.Accounts[0].ID
	}
	doc.ActiveAccount = active
	return doc, nil
}

// file reads and atomically rewrites the accounts document.
type file struct {
	path    string
	watcher *fsnotify.Watcher
}

func newFile(path string) (*file, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create accounts directory: %w", err)
	}
	return &file{path: path}, nil
}

func (f *file) read() (document, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return document{}, errMissing
	}
	if err != nil {
		return document{}, fmt.Errorf("read accounts file: %w", err)
	}
	return decode(data)
}

// write replaces the file through a rename so readers never see a torn document.
func (f *file) write(doc document) error {
	doc.Version = formatVersion
	if doc.Accounts == nil {
		doc.Accounts = []models.Account{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".accounts-*.json")
	if err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to remove temp accounts file", "path", tmp.Name(), "error", err)
		}
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("save accounts: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("save accounts: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("save accounts: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		cleanup()
		return fmt.Errorf("save accounts: %w", err)
	}
	return nil
}

// watch observes the parent directory, since a rename replaces the file's inode.
func (f *file) watch() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch accounts file: %w", err)
	}
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		if cerr := w.Close(); cerr != nil {
			logger.Warn("failed to close watcher", "error", cerr)
		}
		return nil, fmt.Errorf("watch accounts file: %w", err)
	}
	f.watcher = w
	return w, nil
}

func (f *file) closeWatch() error {
	if f.watcher == nil {
		return nil
	}
	return f.watcher.Close()
}

func (f *file) isTarget(ev fsnotify.Event) bool {
	return filepath.Base(ev.Name) == filepath.Base(f.path) &&
		ev.Op&(fsnotify.Write|fsnotify.Create) != 0
}
