// kestrel - streaming chat in the terminal.
//
// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kestrelchat/kestrel/internal/config"
	"github.com/kestrelchat/kestrel/internal/session"
	"github.com/kestrelchat/kestrel/internal/storage"
	"github.com/kestrelchat/kestrel/internal/stream"
	"github.com/kestrelchat/kestrel/internal/ui/chat"
)

// Version information (set at build time)
var Version = "0.1.0"

func main() {
	var (
		serverURL   = flag.String("server", "", "kestreld base URL (default http://<config host:port>)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("kestrel %s\n", Version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: config: %v\n", err)
		os.Exit(1)
	}

	baseURL := *serverURL
	if baseURL == "" {
		baseURL = "http://" + cfg.Addr()
	}
	client := stream.NewAPIClient(baseURL)

	// The packages log through the standard logger; keep that output away
	// from the alternate screen.
	logFile := setupLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	var archive *storage.Archive
	if cfg.Archive.Enabled {
		path, err := cfg.ArchivePath()
		if err == nil {
			archive, err = storage.Open(path)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "kestrel: archive disabled: %v\n", err)
			archive = nil
		} else {
			defer archive.Close()
		}
	}

	store := session.NewStore()
	m := chat.New(cfg, store, client, archive)

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kestrel: %v\n", err)
		os.Exit(1)
	}

	// Persist the final snapshot so a quit mid-conversation is not lost.
	if archive != nil {
		if cm, ok := final.(chat.Model); ok {
			if sess, ok := store.Get(cm.SessionID()); ok && len(sess.Messages) > 0 {
				if err := archive.SaveSession(sess); err != nil {
					fmt.Fprintf(os.Stderr, "kestrel: archive save: %v\n", err)
				}
			}
		}
	}
}

// setupLogging redirects the standard logger to ~/.kestrel/kestrel.log so
// log lines never corrupt the TUI. Logging is discarded when the config
// directory is not writable.
func setupLogging() *os.File {
	log.SetOutput(nullWriter{})

	if err := config.EnsureDir(); err != nil {
		return nil
	}
	dir, err := config.Dir()
	if err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "kestrel.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil
	}
	log.SetOutput(f)
	return f
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }
