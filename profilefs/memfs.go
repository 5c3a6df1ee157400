// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package profilefs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

type memNode struct {
	isDir    bool
	data     []byte
	children map[string]*memNode
}

// MemFS is an in-memory FS, the fixture used throughout this core's test
// suite in place of a real content-addressed backend. Not currently used by
// the daemon, only by tests, the same "possibly useful in the future" spirit
// bmagent's own store/mem.NewFolder was written in.
type MemFS struct {
	mu   sync.Mutex
	root *memNode
}

// NewMemFS returns an empty in-memory filesystem, rooted at "/".
func NewMemFS() *MemFS {
	return &MemFS{root: &memNode{isDir: true, children: map[string]*memNode{}}}
}

func splitPath(p string) []string {
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func (m *MemFS) walk(parts []string, createParents bool) (*memNode, error) {
	n := m.root
	for _, part := range parts {
		child, ok := n.children[part]
		if !ok {
			if !createParents {
				return nil, ErrPathMissing
			}
			child = &memNode{isDir: true, children: map[string]*memNode{}}
			n.children[part] = child
		}
		if !child.isDir {
			return nil, ErrPathMissing
		}
		n = child
	}
	return n, nil
}

func (m *MemFS) Read(p string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := splitPath(p)
	if len(parts) == 0 {
		return nil, ErrPathMissing
	}
	dir, err := m.walk(parts[:len(parts)-1], false)
	if err != nil {
		return nil, err
	}
	n, ok := dir.children[parts[len(parts)-1]]
	if !ok || n.isDir {
		return nil, ErrPathMissing
	}
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

func (m *MemFS) Write(p string, data []byte, opts WriteOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := splitPath(p)
	if len(parts) == 0 {
		return ErrPathMissing
	}
	dir, err := m.walk(parts[:len(parts)-1], opts.CreateParents)
	if err != nil {
		return err
	}

	name := parts[len(parts)-1]
	cp := make([]byte, len(data))
	copy(cp, data)
	dir.children[name] = &memNode{data: cp}
	return nil
}

func (m *MemFS) Ls(p string) ([]Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir, err := m.walk(splitPath(p), false)
	if err != nil {
		return nil, err
	}

	out := make([]Stat, 0, len(dir.children))
	for name, n := range dir.children {
		out = append(out, statOf(name, n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemFS) StatPath(p string) (Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := splitPath(p)
	if len(parts) == 0 {
		return statOf("/", m.root), nil
	}
	dir, err := m.walk(parts[:len(parts)-1], false)
	if err != nil {
		return Stat{}, err
	}
	n, ok := dir.children[parts[len(parts)-1]]
	if !ok {
		return Stat{}, ErrPathMissing
	}
	return statOf(parts[len(parts)-1], n), nil
}

func (m *MemFS) Mkdir(p string, parents bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := splitPath(p)
	if len(parts) == 0 {
		return nil
	}

	if parents {
		_, err := m.walk(parts, true)
		return err
	}

	dir, err := m.walk(parts[:len(parts)-1], false)
	if err != nil {
		return err
	}
	name := parts[len(parts)-1]
	if _, ok := dir.children[name]; ok {
		return nil
	}
	dir.children[name] = &memNode{isDir: true, children: map[string]*memNode{}}
	return nil
}

func (m *MemFS) Remove(p string, recursive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := splitPath(p)
	if len(parts) == 0 {
		m.root = &memNode{isDir: true, children: map[string]*memNode{}}
		return nil
	}

	dir, err := m.walk(parts[:len(parts)-1], false)
	if err != nil {
		return err
	}
	name := parts[len(parts)-1]
	n, ok := dir.children[name]
	if !ok {
		return ErrPathMissing
	}
	if n.isDir && len(n.children) > 0 && !recursive {
		return fmt.Errorf("profilefs: %s: directory not empty", p)
	}
	delete(dir.children, name)
	return nil
}

// statOf computes this node's Stat. For a directory, the hash is a
// Merkle-style SHA-256 over its sorted children's type‖name‖hash triples,
// so that "/"'s hash (this participant's public profile id) changes
// whenever anything in the profile tree changes.
func statOf(name string, n *memNode) Stat {
	if n.isDir {
		names := make([]string, 0, len(n.children))
		for cn := range n.children {
			names = append(names, cn)
		}
		sort.Strings(names)

		h := sha256.New()
		var size int64
		for _, cn := range names {
			child := statOf(cn, n.children[cn])
			size += child.Size
			fmt.Fprintf(h, "%d:%s:%s\n", child.Type, child.Name, child.Hash)
		}
		return Stat{Name: name, Type: TypeDir, Size: size, Hash: hex.EncodeToString(h.Sum(nil))}
	}
	sum := sha256.Sum256(n.data)
	return Stat{Name: name, Type: TypeFile, Size: int64(len(n.data)), Hash: hex.EncodeToString(sum[:])}
}
