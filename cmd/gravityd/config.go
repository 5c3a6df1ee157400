// Originally derived from: btcsuite/btcwallet/config.go
// Copyright (c) 2013-2014 The btcsuite developers

// Copyright (c) 2015 Monetas.
// Copyright 2016 Daniel Krawisz.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcutil"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "gravity.conf"
	defaultLogFilename    = "gravity.log"
	defaultLogLevel       = "info"
	defaultLogConsole     = true

	keyStoreName     = "masterkey.db"
	profileDirName   = "profile"
)

var (
	defaultDataDir    = btcutil.AppDataDir("gravity", false)
	defaultConfigFile = filepath.Join(defaultDataDir, defaultConfigFilename)
	defaultLogFile    = filepath.Join(defaultDataDir, defaultLogFilename)
)

// Config holds the daemon's command-line and config-file options, the same
// two-pass jessevdk/go-flags pattern bmagent's own config.go uses: a
// pre-parse for -C/-D, then a full parse merged with whatever the config
// file set.
type Config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	DataDir     string `short:"D" long:"datadir" description:"Directory to store the master-key file and the profile tree"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	Reset       bool   `long:"reset" description:"Generate a fresh master key, overwriting any existing one"`
}

// loadConfig mirrors bmagent's pre-parse-then-merge config loading: first
// just enough of the command line to find -C/-D, then the config file, then
// the full command line again so flags win over file settings.
func loadConfig() (*Config, []string, error) {
	cfg := Config{
		DataDir:    defaultDataDir,
		ConfigFile: defaultConfigFile,
		DebugLevel: defaultLogLevel,
	}

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default|flags.IgnoreUnknown)
	if _, err := preParser.Parse(); err != nil {
		return nil, nil, err
	}

	if preCfg.DataDir != "" {
		cfg.DataDir = preCfg.DataDir
		cfg.ConfigFile = filepath.Join(cfg.DataDir, defaultConfigFilename)
	}
	if preCfg.ConfigFile != "" {
		cfg.ConfigFile = preCfg.ConfigFile
	}

	if err := flags.NewIniParser(flags.NewParser(&cfg, flags.Default)).ParseFile(cfg.ConfigFile); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			return nil, nil, err
		}
	}

	parser := flags.NewParser(&cfg, flags.Default)
	remaining, err := parser.Parse()
	if err != nil {
		return nil, nil, err
	}

	if cfg.ShowVersion {
		fmt.Println("gravity daemon")
		os.Exit(0)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, nil, err
	}

	return &cfg, remaining, nil
}

func (c *Config) keyStorePath() string {
	return filepath.Join(c.DataDir, keyStoreName)
}

func (c *Config) profileDir() string {
	return filepath.Join(c.DataDir, profileDirName)
}

func (c *Config) logFile() string {
	return defaultLogFile
}
