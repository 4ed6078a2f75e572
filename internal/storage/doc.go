// Copyright (c) 2025 Kestrel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the SQLite transcript archive for kestrel.
//
// The in-process session store is authoritative while the server runs;
// the archive persists finished transcripts so they survive restarts.
//
// # Key Types
//
//   - Archive: database handle with save/load/list/delete operations
//   - SessionMeta: lightweight metadata row for listings
//
// # Usage
//
// Open an archive and save a snapshot:
//
//	archive, err := storage.Open(path)
//	err = archive.SaveSession(sess)
//
// List and load transcripts:
//
//	metas, err := archive.ListSessions()
//	sess, err := archive.LoadSession(metas[0].ID)
package storage
