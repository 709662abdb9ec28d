package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/bft-labs/migchan/internal/domain"
	"github.com/bft-labs/migchan/internal/ports"
)

var _ ports.AddressRegistry = (*File)(nil)

// Listening is the on-disk form of the published listen addresses.
type Listening struct {
	Addresses []string `json:"addresses"`
}

// File publishes listen addresses to a JSON file so that a peer, or an
// operator, can discover ephemeral ports. Every Publish rewrites the file
// atomically.
type File struct {
	path   string
	logger ports.Logger

	mu    sync.Mutex
	addrs []string
}

// NewFile creates a registry writing to path.
func NewFile(path string, logger ports.Logger) *File {
	return &File{path: path, logger: logger}
}

// Publish appends addr and rewrites the file. Write errors are logged;
// publication itself cannot fail.
func (f *File) Publish(addr domain.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.addrs = append(f.addrs, addr.String())
	if err := f.save(); err != nil {
		f.logger.Warn("write address file",
			ports.String("path", f.path),
			ports.Err(err),
		)
	}
}

// save writes to a temp file and renames it over the target.
func (f *File) save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(Listening{Addresses: f.addrs}, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Remove deletes the address file. A missing file is not an error.
func (f *File) Remove() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.addrs = nil
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Load reads a previously written address file.
func Load(path string) (Listening, error) {
	var l Listening
	data, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := json.Unmarshal(data, &l); err != nil {
		return l, err
	}
	return l, nil
}
