// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package publisher is the thin surface over the profile filesystem and
// the external naming service that exposes this participant's own profile
// root hash and resolves a peer's current one.
package publisher

import (
	"github.com/monetas/gravity/keynorm"
	"github.com/monetas/gravity/profilefs"
)

// NamingService is the external "publish my root" / "resolve peer's root"
// collaborator. The real lookup mechanism is unspecified; this core only
// depends on the narrow interface, which carries Resolve alone.
type NamingService interface {
	Resolve(cpk keynorm.CPK) (string, error)
}

// Publisher exposes this participant's profile root hash and resolves
// peers' root hashes via a NamingService, falling back to a configured
// hash when resolution is unavailable — useful for tests and for the
// period before a naming-service lookup is wired up.
type Publisher struct {
	fs       profilefs.FS
	naming   NamingService
	fallback map[keynorm.CPK]string
}

// New builds a Publisher. fallback may be nil; when non-nil, its entries
// are returned for a CPK the naming service cannot resolve, useful for
// tests and for the period before a naming-service lookup is wired up.
func New(fs profilefs.FS, naming NamingService, fallback map[keynorm.CPK]string) *Publisher {
	return &Publisher{fs: fs, naming: naming, fallback: fallback}
}

// GetMyProfileHash returns the content hash of this participant's own
// profile root.
func (p *Publisher) GetMyProfileHash() (string, error) {
	st, err := p.fs.StatPath("/")
	if err != nil {
		return "", err
	}
	return st.Hash, nil
}

// GetProfileHash resolves cpk's current profile root hash via the naming
// service, falling back to a configured value if resolution fails and a
// fallback was configured for cpk.
func (p *Publisher) GetProfileHash(cpk keynorm.CPK) (string, error) {
	hash, err := p.naming.Resolve(cpk)
	if err == nil {
		return hash, nil
	}

	if fb, ok := p.fallback[cpk]; ok {
		log.Debugf("GetProfileHash: naming service resolution failed for %s, using configured fallback", string(cpk))
		return fb, nil
	}
	return "", err
}
