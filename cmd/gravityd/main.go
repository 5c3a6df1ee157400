// Originally derived from: bmagent's cmd/ one-shot RPC command dispatch
// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// gravityd is the one-shot command-line entrypoint wiring together the
// master-key store, the profile filesystem, and this node's identity, then
// dispatching a single subcommand against them — the same shape as
// bmagent's own cmd/ one-shot RPC commands, minus the RPC transport.
package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/monetas/gravity/contacts"
	"github.com/monetas/gravity/gcrypto"
	"github.com/monetas/gravity/group"
	"github.com/monetas/gravity/handshake"
	"github.com/monetas/gravity/identity"
	glog "github.com/monetas/gravity/internal/log"
	"github.com/monetas/gravity/internal/ready"
	"github.com/monetas/gravity/keynorm"
	"github.com/monetas/gravity/masterkey"
	"github.com/monetas/gravity/profilefs"
	"github.com/monetas/gravity/publisher"
)

// nullNaming is a NamingService that never resolves, standing in for the
// out-of-scope external naming-service collaborator until a real one is
// wired up.
type nullNaming struct{}

func (nullNaming) Resolve(cpk keynorm.CPK) (string, error) {
	return "", errors.New("gravityd: no naming service configured")
}

// daemon bundles every wired collaborator a subcommand might need.
type daemon struct {
	cfg       *Config
	kv        *masterkey.BoltKV
	mkStore   *masterkey.Store
	fs        profilefs.FS
	self      *identity.Static
	selfCPK   keynorm.CPK
	reg       *contacts.Registry
	hs        *handshake.Handshake
	eng       *group.Engine
	pub       *publisher.Publisher
	fsReady   *ready.Barrier
	cryptoOK  *ready.Barrier
}

func main() {
	cfg, args, err := loadConfig()
	if err != nil {
		glog.Exit(err)
	}
	if len(args) == 0 {
		glog.Exit(errors.New("gravityd: missing subcommand"))
	}

	if err := glog.InitBackend(cfg.logFile(), defaultLogConsole); err != nil {
		glog.Exit(err)
	}
	glog.SetAllLevels(cfg.DebugLevel)

	d, err := newDaemon(cfg)
	if err != nil {
		glog.Exit(err)
	}

	if err := dispatch(d, args[0], args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newDaemon wires every collaborator from cfg, fulfilling the two
// readiness barriers once the profile filesystem and the node's crypto
// material are both usable.
func newDaemon(cfg *Config) (*daemon, error) {
	fsReady := ready.NewBarrier()
	cryptoOK := ready.NewBarrier()

	kv, err := masterkey.OpenBoltKV(cfg.keyStorePath())
	if err != nil {
		return nil, err
	}
	mkStore := masterkey.New(kv)

	if cfg.Reset {
		if _, err := mkStore.Reset(); err != nil {
			return nil, err
		}
	} else if _, err := mkStore.Get(); errors.Is(err, masterkey.ErrNoMasterKey) {
		if _, err := mkStore.Reset(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	fs, err := profilefs.NewDiskFS(cfg.profileDir())
	if err != nil {
		return nil, err
	}
	fsReady.Fulfill()

	self, err := identity.NewStatic()
	if err != nil {
		return nil, err
	}
	selfCPK, err := self.CPK()
	if err != nil {
		return nil, err
	}
	cryptoOK.Fulfill()

	reg := contacts.New(fs, mkStore.Get)
	hs := handshake.New(fs, reg, self)
	eng := group.New(fs, reg, selfCPK, mkStore.Get)
	pub := publisher.New(fs, nullNaming{}, nil)

	return &daemon{
		cfg:      cfg,
		kv:       kv,
		mkStore:  mkStore,
		fs:       fs,
		self:     self,
		selfCPK:  selfCPK,
		reg:      reg,
		hs:       hs,
		eng:      eng,
		pub:      pub,
		fsReady:  fsReady,
		cryptoOK: cryptoOK,
	}, nil
}

// dispatch mirrors bmagent's cmd/ subcommand switch: one-shot, no
// persistent server loop.
func dispatch(d *daemon, cmd string, args []string) error {
	d.fsReady.Wait()
	d.cryptoOK.Wait()

	switch cmd {
	case "whoami":
		return cmdWhoami(d)
	case "add-subscriber":
		return cmdAddSubscriber(d, args)
	case "subscribe":
		return cmdSubscribe(d, args)
	case "create-group":
		return cmdCreateGroup(d, args)
	case "set-nicknames":
		return cmdSetNicknames(d, args)
	case "group-info":
		return cmdGroupInfo(d, args)
	case "list-groups":
		return cmdListGroups(d)
	default:
		return fmt.Errorf("gravityd: unknown command %q", cmd)
	}
}

func cmdWhoami(d *daemon) error {
	fmt.Println(string(d.selfCPK))
	return nil
}

func cmdAddSubscriber(d *daemon, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: gravityd add-subscriber <peer-cpk-pem-file>")
	}
	peerKey, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	secret, err := d.hs.AddSubscriber(peerKey)
	if err != nil {
		return err
	}
	fmt.Println(gcrypto.B64URLEncode(secret[:]))
	return nil
}

func cmdSubscribe(d *daemon, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: gravityd subscribe <peer-cpk-pem-file> <peer-subscribers-path>")
	}
	peerKey, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	peerCPK, err := keynorm.ToCanonicalPublicKey(peerKey)
	if err != nil {
		return err
	}

	secret, err := handshake.TestDecryptAllSubscribers(d.fs, args[1], d.self)
	if err != nil {
		return err
	}

	if err := d.reg.UpsertContact(peerCPK, contacts.Record{
		contacts.MySecretKey: gcrypto.B64URLEncode(secret[:]),
	}); err != nil {
		return err
	}

	fmt.Println(gcrypto.B64URLEncode(secret[:]))
	return nil
}

func cmdCreateGroup(d *daemon, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: gravityd create-group <group-id> [member-cpk-pem-file ...]")
	}
	groupID := args[0]

	members := make([]keynorm.CPK, 0, len(args)-1)
	for _, path := range args[1:] {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		cpk, err := keynorm.ToCanonicalPublicKey(raw)
		if err != nil {
			return err
		}
		members = append(members, cpk)
	}

	b64G, err := d.eng.CreateGroup(members, groupID)
	if err != nil {
		return err
	}
	fmt.Println(b64G)
	return nil
}

func cmdSetNicknames(d *daemon, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: gravityd set-nicknames <b64-group-id> <cpk-pem-file>=<nickname> ...")
	}
	b64G := args[0]

	names := make(map[keynorm.CPK]string)
	for _, pair := range args[1:] {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("gravityd: malformed member=nickname pair %q", pair)
		}
		raw, err := os.ReadFile(parts[0])
		if err != nil {
			return err
		}
		cpk, err := keynorm.ToCanonicalPublicKey(raw)
		if err != nil {
			return err
		}
		names[cpk] = parts[1]
	}

	return d.eng.SetNicknames(names, b64G)
}

func cmdGroupInfo(d *daemon, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: gravityd group-info <b64-group-id>")
	}
	info, err := d.eng.GetGroupInfo(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("id: %s\n", info.ID)
	for cpk, nick := range info.Members {
		fmt.Printf("  %s  %s\n", truncateCPK(cpk), nick)
	}
	return nil
}

func cmdListGroups(d *daemon) error {
	names, err := d.eng.ListGroups()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func truncateCPK(cpk string) string {
	if len(cpk) <= 16 {
		return cpk
	}
	return base64.RawStdEncoding.EncodeToString([]byte(cpk))[:16] + "..."
}
