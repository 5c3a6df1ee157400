// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package profilefs is a thin, typed facade over the content-addressed
// filesystem that backs a participant's profile tree. Two implementations
// of the same FS interface are provided, the same disk-vs-memory split as
// bmagent's store/data and store/mem packages for its own folder storage:
// DiskFS for the daemon and MemFS for tests.
package profilefs

import (
	"errors"
	"path"
)

// ErrPathMissing is returned by Read, Ls, and StatPath when the path does not
// exist. Components 5 and 7 recognize this sentinel structurally (via
// IsPathMissing) and treat "not found" as "empty" rather than propagating
// it as a hard failure.
var ErrPathMissing = errors.New("profilefs: path does not exist")

// IsPathMissing reports whether err is (or wraps) ErrPathMissing.
func IsPathMissing(err error) bool {
	return errors.Is(err, ErrPathMissing)
}

// EntryType distinguishes a regular file from a directory in a listing or a
// stat result.
type EntryType int

const (
	// TypeFile is a regular, leaf entry.
	TypeFile EntryType = iota
	// TypeDir is a directory entry.
	TypeDir
)

// Stat describes one entry in the profile tree without its contents.
type Stat struct {
	Name string
	Type EntryType
	Size int64
	Hash string
}

// TreeNode is one node of a subtree returned by LoadTree. Its Contents
// field is populated only for directories.
type TreeNode struct {
	Stat
	Contents map[string]*TreeNode
}

// WriteOptions controls write behavior.
type WriteOptions struct {
	// CreateParents, when true (the default posture for every write this
	// core makes), creates any missing parent directories.
	CreateParents bool
}

// FS is the external content-addressed filesystem collaborator, typed for
// this core's use. Every concrete write truncates any existing content at
// that path. Implementations: DiskFS (real, for the daemon) and MemFS
// (in-memory, for tests).
type FS interface {
	// Read returns the full contents of the file at path. Fails with
	// ErrPathMissing if it does not exist.
	Read(path string) ([]byte, error)

	// Write stores data at path, creating parent directories per opts.
	Write(path string, data []byte, opts WriteOptions) error

	// Ls lists the direct children of the directory at path. Fails with
	// ErrPathMissing if the directory does not exist.
	Ls(path string) ([]Stat, error)

	// StatPath returns metadata for path without reading its contents.
	// Fails with ErrPathMissing if it does not exist.
	StatPath(path string) (Stat, error)

	// Mkdir creates the directory at path, and its parents if parents is
	// true.
	Mkdir(path string, parents bool) error

	// Remove deletes the entry at path. If recursive, a directory and all
	// of its contents are removed.
	Remove(path string, recursive bool) error
}

// LoadTree walks the whole subtree rooted at root in one call and returns
// it fully loaded as a nested mapping; no part of it is loaded lazily on
// later access. The profile tree is acyclic by construction (it is
// content-addressed), so this is a plain recursive walk with no
// memoization needed.
func LoadTree(fs FS, root string) (*TreeNode, error) {
	st, err := fs.StatPath(root)
	if err != nil {
		return nil, err
	}

	node := &TreeNode{Stat: st}
	if st.Type != TypeDir {
		return node, nil
	}

	children, err := fs.Ls(root)
	if err != nil {
		return nil, err
	}

	node.Contents = make(map[string]*TreeNode, len(children))
	for _, c := range children {
		child, err := LoadTree(fs, path.Join(root, c.Name))
		if err != nil {
			return nil, err
		}
		node.Contents[c.Name] = child
	}
	return node, nil
}
