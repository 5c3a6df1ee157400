// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package profilefs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DiskFS is a local-disk-backed FS, standing in for the content-addressed
// distributed filesystem this core is designed against (that collaborator
// is an external one and out of scope here). It roots all paths under a
// base directory so the daemon's profile tree lives in one place on disk.
type DiskFS struct {
	base string
}

// NewDiskFS returns a DiskFS rooted at base, creating base if necessary.
func NewDiskFS(base string) (*DiskFS, error) {
	if err := os.MkdirAll(base, 0700); err != nil {
		return nil, err
	}
	return &DiskFS{base: base}, nil
}

func (d *DiskFS) resolve(p string) string {
	return filepath.Join(d.base, filepath.Clean("/"+p))
}

func (d *DiskFS) Read(p string) ([]byte, error) {
	b, err := os.ReadFile(d.resolve(p))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrPathMissing
		}
		return nil, err
	}
	return b, nil
}

func (d *DiskFS) Write(p string, data []byte, opts WriteOptions) error {
	full := d.resolve(p)
	if opts.CreateParents {
		if err := os.MkdirAll(filepath.Dir(full), 0700); err != nil {
			return err
		}
	}
	log.Tracef("Write: %d bytes to %s", len(data), p)
	return os.WriteFile(full, data, 0600)
}

func (d *DiskFS) Ls(p string) ([]Stat, error) {
	entries, err := os.ReadDir(d.resolve(p))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrPathMissing
		}
		return nil, err
	}

	out := make([]Stat, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		st, err := statOfFileInfo(e.Name(), d.resolve(p), info)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (d *DiskFS) StatPath(p string) (Stat, error) {
	info, err := os.Stat(d.resolve(p))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Stat{}, ErrPathMissing
		}
		return Stat{}, err
	}
	return statOfFileInfo(filepath.Base(d.resolve(p)), filepath.Dir(d.resolve(p)), info)
}

func (d *DiskFS) Mkdir(p string, parents bool) error {
	if parents {
		return os.MkdirAll(d.resolve(p), 0700)
	}
	return os.Mkdir(d.resolve(p), 0700)
}

func (d *DiskFS) Remove(p string, recursive bool) error {
	full := d.resolve(p)
	if recursive {
		return os.RemoveAll(full)
	}
	err := os.Remove(full)
	if errors.Is(err, os.ErrNotExist) {
		return ErrPathMissing
	}
	return err
}

func statOfFileInfo(name, dir string, info os.FileInfo) (Stat, error) {
	full := filepath.Join(dir, name)

	if !info.IsDir() {
		b, err := os.ReadFile(full)
		if err != nil {
			return Stat{Name: name, Type: TypeFile, Size: info.Size()}, nil
		}
		sum := sha256.Sum256(b)
		return Stat{Name: name, Type: TypeFile, Size: info.Size(), Hash: hex.EncodeToString(sum[:])}, nil
	}

	return hashDir(name, full)
}

// hashDir computes a Merkle-style content hash for a directory: the SHA-256
// of its sorted children's type‖name‖hash triples. This is what makes "/"
// usable as this participant's public profile id: the root's hash changes
// whenever anything anywhere in the profile tree changes. os.ReadDir
// already returns entries sorted by filename.
func hashDir(name, full string) (Stat, error) {
	entries, err := os.ReadDir(full)
	if err != nil {
		return Stat{}, err
	}

	h := sha256.New()
	var size int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return Stat{}, err
		}
		child, err := statOfFileInfo(e.Name(), full, info)
		if err != nil {
			return Stat{}, err
		}
		size += child.Size
		fmt.Fprintf(h, "%d:%s:%s\n", child.Type, child.Name, child.Hash)
	}
	return Stat{Name: name, Type: TypeDir, Size: size, Hash: hex.EncodeToString(h.Sum(nil))}, nil
}
