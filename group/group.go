// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package group creates and reads gravity's named groups: a per-group
// random salt names a directory under /groups, a per-group symmetric key
// encrypts the group's shared metadata, and each member's copy of that key
// is delivered at a deterministic, cross-group-unlinkable filename derived
// from the salt and the member's pairwise secret.
package group

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/monetas/gravity/contacts"
	"github.com/monetas/gravity/gcrypto"
	"github.com/monetas/gravity/keynorm"
	"github.com/monetas/gravity/profilefs"
)

// writeJob is one member (or self) group-key delivery: ciphertext for msg
// under key is written to path.
type writeJob struct {
	path string
	key  gcrypto.Key
}

// saltSize is the size, in bytes, of a group salt G.
const saltSize = 24

// meFilename is the literal filename of the participant's own group-key
// entry within a group directory.
const meFilename = "me"

// infoFilename is the filename of the group's encrypted metadata record.
const infoFilename = "info.json.enc"

// UnknownMemberError is returned by CreateGroup when one or more requested
// members are not present in contacts. No writes are performed; it names
// every missing CPK, not just the first.
type UnknownMemberError struct {
	Missing []keynorm.CPK
}

func (e *UnknownMemberError) Error() string {
	names := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		names[i] = string(m)
	}
	return fmt.Sprintf("group: unknown member(s): %s", strings.Join(names, ", "))
}

// NotInGroupError is returned by SetNicknames when one or more CPKs in the
// input have no corresponding filename in the group directory. No partial
// update is made; it names every missing CPK.
type NotInGroupError struct {
	Missing []keynorm.CPK
}

func (e *NotInGroupError) Error() string {
	names := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		names[i] = string(m)
	}
	return fmt.Sprintf("group: not in group: %s", strings.Join(names, ", "))
}

// Info is the structured record stored (encrypted under K_G) at
// /groups/<b64(G)>/info.json.enc.
type Info struct {
	ID      string            `json:"id"`
	Members map[string]string `json:"members"`
}

// Engine implements group creation, reading, and nickname management over
// a profile filesystem, a contacts registry, this participant's own CPK,
// and its master key.
type Engine struct {
	fs        profilefs.FS
	contacts  *contacts.Registry
	selfCPK   keynorm.CPK
	masterKey func() (gcrypto.Key, error)
}

// New builds an Engine.
func New(fs profilefs.FS, reg *contacts.Registry, selfCPK keynorm.CPK, masterKey func() (gcrypto.Key, error)) *Engine {
	return &Engine{fs: fs, contacts: reg, selfCPK: selfCPK, masterKey: masterKey}
}

func groupDir(b64G string) string {
	return "/groups/" + b64G
}

// memberFilename derives the deterministic, cross-group-unlinkable path
// segment at which a member's group-key ciphertext is stored: B58(SHA-256(G
// ‖ S)). G and S are concatenated explicitly before hashing rather than
// hashed separately and combined, since the two must agree byte-for-byte
// with whatever the reading side computes.
func memberFilename(salt []byte, secret gcrypto.Key) string {
	return gcrypto.KeyedHash(gcrypto.Concat(salt, secret[:]))
}

// keyEnvelope is the JSON form the group key is wrapped in before being
// symmetrically encrypted for delivery: a canonical single-element list.
type keyEnvelope []string

// CreateGroup creates a new group containing memberCPKs (all of whom must
// already be present in contacts) plus the participant themself, and seeds
// an empty nickname for every member. No filesystem state is written if
// any member is unknown. Writes to each member's key-delivery file and to
// "me" happen concurrently; info.json.enc is written once they have all
// finished, and the nickname seed is strictly ordered after that, so a reader
// who observes the nickname roster can trust that every member's
// key-delivery file already exists.
func (e *Engine) CreateGroup(memberCPKs []keynorm.CPK, groupID string) (string, error) {
	all, err := e.contacts.GetContacts()
	if err != nil {
		return "", err
	}

	var missing []keynorm.CPK
	secrets := make(map[keynorm.CPK]gcrypto.Key, len(memberCPKs))
	for _, cpk := range memberCPKs {
		rec, ok := all[cpk]
		if !ok {
			missing = append(missing, cpk)
			continue
		}
		secret, ok, err := rec.MySecret()
		if err != nil {
			return "", err
		}
		if !ok {
			missing = append(missing, cpk)
			continue
		}
		secrets[cpk] = secret
	}
	if len(missing) > 0 {
		return "", &UnknownMemberError{Missing: missing}
	}

	salt, err := randomSalt()
	if err != nil {
		return "", err
	}
	groupKey, err := gcrypto.GenerateKey()
	if err != nil {
		return "", err
	}
	b64G := gcrypto.B64URLEncode(salt)
	dir := groupDir(b64G)

	if err := e.fs.Mkdir(dir, true); err != nil {
		return "", err
	}

	msg, err := json.Marshal(keyEnvelope{gcrypto.B64URLEncode(groupKey[:])})
	if err != nil {
		return "", err
	}

	masterKey, err := e.masterKey()
	if err != nil {
		return "", err
	}

	jobs := make([]writeJob, 0, len(memberCPKs)+2)
	for _, secret := range secrets {
		jobs = append(jobs, writeJob{path: dir + "/" + memberFilename(salt, secret), key: secret})
	}
	jobs = append(jobs, writeJob{path: dir + "/" + meFilename, key: masterKey})

	if err := writeAllEncrypted(e.fs, jobs, msg); err != nil {
		return "", err
	}

	if groupID == "" {
		groupID = uuid.New().String()
	}
	infoPT, err := json.Marshal(Info{ID: groupID, Members: map[string]string{}})
	if err != nil {
		return "", err
	}
	infoCT, err := gcrypto.SymEncrypt(groupKey, infoPT)
	if err != nil {
		return "", err
	}
	if err := e.fs.Write(dir+"/"+infoFilename, infoCT, profilefs.WriteOptions{CreateParents: true}); err != nil {
		return "", err
	}

	names := make(map[keynorm.CPK]string, len(memberCPKs)+1)
	names[e.selfCPK] = ""
	for _, cpk := range memberCPKs {
		names[cpk] = ""
	}
	if err := e.SetNicknames(names, b64G); err != nil {
		return "", err
	}

	log.Infof("CreateGroup: created %s with %d member(s)", b64G, len(memberCPKs))
	return b64G, nil
}

// writeAllEncrypted symmetrically encrypts msg once per job under that
// job's key and writes the results concurrently, awaiting them all before
// returning: any write a later operation could observe must be finished,
// not merely started, before the caller sees success.
func writeAllEncrypted(fs profilefs.FS, jobs []writeJob, msg []byte) error {
	var wg sync.WaitGroup
	errs := make([]error, len(jobs))

	for i, j := range jobs {
		i, j := i, j
		wg.Add(1)
		go func() {
			defer wg.Done()
			blob, err := gcrypto.SymEncrypt(j.key, msg)
			if err != nil {
				errs[i] = err
				return
			}
			errs[i] = fs.Write(j.path, blob, profilefs.WriteOptions{CreateParents: true})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// GetGroupKey reads and decrypts this participant's own copy of K_G.
func (e *Engine) GetGroupKey(b64G string) (gcrypto.Key, error) {
	masterKey, err := e.masterKey()
	if err != nil {
		return gcrypto.Key{}, err
	}

	blob, err := e.fs.Read(groupDir(b64G) + "/" + meFilename)
	if err != nil {
		return gcrypto.Key{}, err
	}
	pt, err := gcrypto.SymDecrypt(masterKey, blob)
	if err != nil {
		return gcrypto.Key{}, err
	}

	var env keyEnvelope
	if err := json.Unmarshal(pt, &env); err != nil {
		return gcrypto.Key{}, err
	}
	if len(env) == 0 {
		return gcrypto.Key{}, errEmptyKeyEnvelope
	}

	raw, err := gcrypto.B64URLDecode(env[0])
	if err != nil {
		return gcrypto.Key{}, err
	}
	if len(raw) != gcrypto.KeySize {
		return gcrypto.Key{}, errEmptyKeyEnvelope
	}
	var k gcrypto.Key
	copy(k[:], raw)
	return k, nil
}

// GetGroupInfo derives K_G via GetGroupKey and decrypts the group's
// metadata record. A missing info.json.enc yields an empty Info rather
// than an error.
func (e *Engine) GetGroupInfo(b64G string) (Info, error) {
	groupKey, err := e.GetGroupKey(b64G)
	if err != nil {
		return Info{}, err
	}

	blob, err := e.fs.Read(groupDir(b64G) + "/" + infoFilename)
	if err != nil {
		if profilefs.IsPathMissing(err) {
			return Info{Members: map[string]string{}}, nil
		}
		return Info{}, err
	}

	pt, err := gcrypto.SymDecrypt(groupKey, blob)
	if err != nil {
		return Info{}, err
	}

	var info Info
	if err := json.Unmarshal(pt, &info); err != nil {
		return Info{}, err
	}
	if info.Members == nil {
		info.Members = map[string]string{}
	}
	return info, nil
}

// SetNicknames merges names into the group's membership roster. Every CPK
// in names must already have a filename present in the group directory
// (the participant's own entry is "me"; everyone else's is derived from
// contacts); otherwise no update is made and a NotInGroupError names every
// CPK that could not be resolved.
func (e *Engine) SetNicknames(names map[keynorm.CPK]string, b64G string) error {
	dir := groupDir(b64G)
	entries, err := e.fs.Ls(dir)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(entries))
	for _, en := range entries {
		present[en.Name] = true
	}

	all, err := e.contacts.GetContacts()
	if err != nil {
		return err
	}

	var missing []keynorm.CPK
	for cpk := range names {
		if cpk == e.selfCPK {
			if !present[meFilename] {
				missing = append(missing, cpk)
			}
			continue
		}

		rec, ok := all[cpk]
		if !ok {
			missing = append(missing, cpk)
			continue
		}
		secret, ok, err := rec.MySecret()
		if err != nil {
			return err
		}
		if !ok {
			missing = append(missing, cpk)
			continue
		}
		if !present[memberFilenameBySalt(b64G, secret)] {
			missing = append(missing, cpk)
		}
	}
	if len(missing) > 0 {
		log.Debugf("SetNicknames: rejecting update to %s, %d member(s) not in group", b64G, len(missing))
		return &NotInGroupError{Missing: missing}
	}

	info, err := e.GetGroupInfo(b64G)
	if err != nil {
		return err
	}
	if info.Members == nil {
		info.Members = map[string]string{}
	}
	for cpk, name := range names {
		info.Members[string(cpk)] = name
	}

	groupKey, err := e.GetGroupKey(b64G)
	if err != nil {
		return err
	}
	pt, err := json.Marshal(info)
	if err != nil {
		return err
	}
	blob, err := gcrypto.SymEncrypt(groupKey, pt)
	if err != nil {
		return err
	}
	return e.fs.Write(dir+"/"+infoFilename, blob, profilefs.WriteOptions{CreateParents: true})
}

func memberFilenameBySalt(b64G string, secret gcrypto.Key) string {
	salt, err := gcrypto.B64URLDecode(b64G)
	if err != nil {
		return ""
	}
	return memberFilename(salt, secret)
}

// ListGroups returns the base64url salt name of every directory under
// /groups. A missing /groups folder yields an empty list rather than an
// error.
func (e *Engine) ListGroups() ([]string, error) {
	entries, err := e.fs.Ls("/groups")
	if err != nil {
		if profilefs.IsPathMissing(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, en := range entries {
		if en.Type == profilefs.TypeDir {
			names = append(names, en.Name)
		}
	}
	return names, nil
}

// DescribeGroups lists every group under /groups and attempts
// GetGroupInfo on each, silently skipping any group this participant
// cannot currently decrypt (e.g. one it was never handed a key for),
// rather than failing the whole listing.
func (e *Engine) DescribeGroups() (map[string]Info, error) {
	names, err := e.ListGroups()
	if err != nil {
		return nil, err
	}

	out := make(map[string]Info, len(names))
	for _, b64G := range names {
		info, err := e.GetGroupInfo(b64G)
		if err != nil {
			continue
		}
		out[b64G] = info
	}
	return out, nil
}

func randomSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

var errEmptyKeyEnvelope = errors.New("group: empty group-key envelope")
