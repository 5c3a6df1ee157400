// Originally derived from: btcsuite/btcwallet/log.go
// Copyright (c) 2013-2015 The btcsuite developers

// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package log wires up the subsystem loggers shared by every package in
// this module, the same backend-plus-subsystem pattern bmagent's own
// log.go uses: one seelog backend logger, with a btclog.Logger per
// subsystem routed through it.
package log

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/cihub/seelog"

	"github.com/monetas/gravity/contacts"
	"github.com/monetas/gravity/gcrypto"
	"github.com/monetas/gravity/group"
	"github.com/monetas/gravity/handshake"
	"github.com/monetas/gravity/keynorm"
	"github.com/monetas/gravity/masterkey"
	"github.com/monetas/gravity/profilefs"
	"github.com/monetas/gravity/publisher"
)

// Subsystem loggers, one per gravity package. Each package keeps its own
// disabled-by-default btclog.Logger (its own log.go, in the same shape as
// bmagent's per-package store/log.go and cmd/log.go) and exposes UseLogger
// so this package can route the shared seelog backend to it, the same
// wiring bmagent's own root log.go does for store, bmrpc, powmgr and email.
var (
	backendLog = seelog.Disabled

	Crypto    = btclog.Disabled // CRYP: gcrypto
	KeyNorm   = btclog.Disabled // KNRM: keynorm
	MasterKey = btclog.Disabled // MKEY: masterkey
	FS        = btclog.Disabled // PFS : profilefs
	Contacts  = btclog.Disabled // CTCT: contacts
	Handshake = btclog.Disabled // SUBS: handshake
	Group     = btclog.Disabled // GRP : group
	Publish   = btclog.Disabled // PUB : publisher
)

// subsystemSetters maps each subsystem identifier to the package-level
// UseLogger function that should receive its logger, mirroring bmagent's
// useLogger switch in its own root log.go.
var subsystemSetters = map[string]func(btclog.Logger){
	"CRYP": gcrypto.UseLogger,
	"KNRM": keynorm.UseLogger,
	"MKEY": masterkey.UseLogger,
	"PFS":  profilefs.UseLogger,
	"CTCT": contacts.UseLogger,
	"SUBS": handshake.UseLogger,
	"GRP":  group.UseLogger,
	"PUB":  publisher.UseLogger,
}

var subsystemLoggers = map[string]*btclog.Logger{
	"CRYP": &Crypto,
	"KNRM": &KeyNorm,
	"MKEY": &MasterKey,
	"PFS":  &FS,
	"CTCT": &Contacts,
	"SUBS": &Handshake,
	"GRP":  &Group,
	"PUB":  &Publish,
}

// logClosure provides a closure over expensive logging operations so they
// aren't evaluated when the logging level doesn't warrant it.
type logClosure func() string

func (c logClosure) String() string { return c() }

// NewLogClosure wraps fn as a fmt.Stringer evaluated lazily by the logger.
func NewLogClosure(fn func() string) fmt.Stringer {
	return logClosure(fn)
}

// InitBackend initializes the seelog backend all subsystem loggers feed
// into, writing to a rolling log file and, when logConsole is set, to the
// console as well.
func InitBackend(logFile string, logConsole bool) error {
	var console string
	if logConsole {
		console = "<console />"
	}

	config := fmt.Sprintf(`
	<seelog type="adaptive" mininterval="2000000" maxinterval="100000000"
		critmsgcount="500" minlevel="trace">
		<outputs formatid="all">
			%s
			<rollingfile type="size" filename="%s" maxsize="10485760" maxrolls="3" />
		</outputs>
		<formats>
			<format id="all" format="%%Time %%Date [%%LEV] %%Msg%%n" />
		</formats>
	</seelog>`, console, logFile)

	logger, err := seelog.LoggerFromConfigAsString(config)
	if err != nil {
		return err
	}
	backendLog = logger
	return nil
}

// SetLevel sets the logging level for one subsystem, creating its logger
// if needed. Invalid subsystems are ignored.
func SetLevel(subsystemID, levelStr string) {
	ref, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}

	level, ok := btclog.LogLevelFromString(levelStr)
	if !ok {
		level = btclog.InfoLvl
	}

	if *ref == btclog.Disabled {
		*ref = btclog.NewSubsystemLogger(backendLog, subsystemID+": ")
		if setter, ok := subsystemSetters[subsystemID]; ok {
			setter(*ref)
		}
	}
	(*ref).SetLevel(level)
}

// SetAllLevels sets every subsystem logger to level.
func SetAllLevels(level string) {
	for id := range subsystemLoggers {
		SetLevel(id, level)
	}
}

// Exit prints a fatal error to stderr and exits the process; used only by
// cmd/gravityd for errors during startup.
func Exit(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
