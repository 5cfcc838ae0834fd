package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/peterbourgon/diskv/v3"
)

// cacheSizeMaxBytes bounds the in-memory read cache kept by diskv.
const cacheSizeMaxBytes = 1024

// Disk is a Storage that keeps one file per key under a base directory.
// Values survive process restarts, which makes it suitable for CLI tools.
type Disk struct {
	dv *diskv.Diskv
}

// NewDisk creates a file-backed store rooted at dir.
// The directory is created on first write.
func NewDisk(dir string) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("storage: disk directory is required")
	}

	// Keep all files flat in the base directory.
	flatTransform := func(string) []string { return []string{} }

	dv := diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    flatTransform,
		CacheSizeMax: cacheSizeMaxBytes,
		FilePerm:     0o600,
		PathPerm:     0o700,
	})

	return &Disk{dv: dv}, nil
}

// maxNameLen keeps file names below the common 255 byte limit.
const maxNameLen = 200

// fileName maps an arbitrary key onto a name that is safe as a file name.
// Keys whose hex form would be too long are stored under their SHA-256 digest;
// the "h-" prefix keeps those apart from hex names.
func fileName(key string) string {
	name := hex.EncodeToString([]byte(key))
	if len(name) <= maxNameLen {
		return name
	}
	sum := sha256.Sum256([]byte(key))
	return "h-" + hex.EncodeToString(sum[:])
}

// GetItem implements Storage.
func (d *Disk) GetItem(_ context.Context, key string) (string, bool, error) {
	name := fileName(key)
	if !d.dv.Has(name) {
		return "", false, nil
	}

	b, err := d.dv.Read(name)
	if err != nil {
		return "", false, fmt.Errorf("storage: read %q: %w", key, err)
	}

	return string(b), true, nil
}

// SetItem implements Storage.
func (d *Disk) SetItem(_ context.Context, key, value string) error {
	if err := d.dv.Write(fileName(key), []byte(value)); err != nil {
		return fmt.Errorf("storage: write %q: %w", key, err)
	}
	return nil
}

// RemoveItem implements Storage.
func (d *Disk) RemoveItem(_ context.Context, key string) error {
	name := fileName(key)
	if !d.dv.Has(name) {
		return nil
	}

	if err := d.dv.Erase(name); err != nil {
		return fmt.Errorf("storage: erase %q: %w", key, err)
	}
	return nil
}

// Clear removes every stored key.
func (d *Disk) Clear() error {
	if err := d.dv.EraseAll(); err != nil {
		return fmt.Errorf("storage: erase all: %w", err)
	}
	return nil
}
