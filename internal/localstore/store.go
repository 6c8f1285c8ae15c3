// Package localstore is the embedded encrypted object store. Records are
// JSON documents grouped into named collections; payloads are encrypted
// at rest with AES-256-GCM inside a SQLite file. On open the store
// decrypts everything into an in-memory read model, so reads are
// synchronous snapshots and writes go through explicit transactions that
// become visible all at once.
package localstore

import (
	"crypto/cipher"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS objects (
	collection  TEXT NOT NULL,
	id          TEXT NOT NULL,
	payload     BLOB NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// canary is decrypted on every open so a wrong key fails fast even when
// no user data has been written yet.
const (
	metaCollection = "_meta"
	canaryID       = "keycheck"
	canaryPayload  = `{"ok":true}`
)

// Store owns the canonical local copy of every entity. A single writer
// at a time; any number of synchronous readers.
type Store struct {
	db   *sql.DB
	aead cipher.AEAD

	mu   sync.RWMutex
	data map[string]map[string][]byte // collection -> id -> plaintext JSON

	writeMu sync.Mutex // serializes Update calls end to end

	watchMu   sync.Mutex
	watchers  map[string]map[int]func()
	nextWatch int
}

// Open opens (or creates) the store at path using the given 32-byte key.
// It fails when the key cannot decrypt existing content.
func Open(path string, key []byte) (*Store, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	s := &Store{
		db:       db,
		aead:     aead,
		data:     make(map[string]map[string][]byte),
		watchers: make(map[string]map[int]func()),
	}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.ensureCanary(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	var ver int
	err := db.QueryRow("SELECT version FROM schema_meta LIMIT 1").Scan(&ver)
	if err != nil {
		ver = 0
	}
	if ver >= schemaVersion {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(schemaV1); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM schema_meta"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_meta (version) VALUES (?)", schemaVersion); err != nil {
		return err
	}
	return tx.Commit()
}

// load decrypts every stored row into the in-memory model. A decryption
// failure here means the key is wrong for this file.
func (s *Store) load() error {
	rows, err := s.db.Query("SELECT collection, id, payload FROM objects")
	if err != nil {
		return fmt.Errorf("load objects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var collection, id string
		var payload []byte
		if err := rows.Scan(&collection, &id, &payload); err != nil {
			return fmt.Errorf("scan object: %w", err)
		}
		plain, err := open(s.aead, payload)
		if err != nil {
			return fmt.Errorf("open store (wrong key?): %w", err)
		}
		if s.data[collection] == nil {
			s.data[collection] = make(map[string][]byte)
		}
		s.data[collection][id] = plain
	}
	return rows.Err()
}

func (s *Store) ensureCanary() error {
	if _, ok := s.data[metaCollection][canaryID]; ok {
		return nil
	}
	return s.Update(func(tx *Tx) error {
		return tx.PutRaw(metaCollection, canaryID, []byte(canaryPayload))
	})
}

// Tx stages writes for a single atomic transaction. It is only valid
// inside the Update callback.
type Tx struct {
	store   *Store
	puts    map[string]map[string][]byte
	deletes map[string]map[string]bool
}

// Put marshals doc and stages it under collection/id.
func (tx *Tx) Put(collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	return tx.PutRaw(collection, id, raw)
}

// PutRaw stages a pre-marshaled JSON document.
func (tx *Tx) PutRaw(collection, id string, raw []byte) error {
	if tx.puts[collection] == nil {
		tx.puts[collection] = make(map[string][]byte)
	}
	tx.puts[collection][id] = raw
	if tx.deletes[collection] != nil {
		delete(tx.deletes[collection], id)
	}
	return nil
}

// Delete stages a permanent removal of collection/id.
func (tx *Tx) Delete(collection, id string) {
	if tx.deletes[collection] == nil {
		tx.deletes[collection] = make(map[string]bool)
	}
	tx.deletes[collection][id] = true
	if tx.puts[collection] != nil {
		delete(tx.puts[collection], id)
	}
}

// Get reads collection/id as seen by this transaction: staged writes
// shadow committed state.
func (tx *Tx) Get(collection, id string, out any) (bool, error) {
	if tx.deletes[collection][id] {
		return false, nil
	}
	if raw, ok := tx.puts[collection][id]; ok {
		return true, json.Unmarshal(raw, out)
	}
	return tx.store.Get(collection, id, out)
}

// IDs returns every id in the collection as seen by this transaction.
func (tx *Tx) IDs(collection string) []string {
	seen := make(map[string]bool)
	tx.store.mu.RLock()
	for id := range tx.store.data[collection] {
		seen[id] = true
	}
	tx.store.mu.RUnlock()
	for id := range tx.puts[collection] {
		seen[id] = true
	}
	for id := range tx.deletes[collection] {
		delete(seen, id)
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Update runs fn inside a write transaction. Staged changes are
// committed to SQLite first, then published to the in-memory model and
// watchers; on any error nothing becomes visible. Watchers run after
// the write lock is released, so they may issue writes of their own.
func (s *Store) Update(fn func(tx *Tx) error) error {
	touched, err := s.commit(fn)
	if err != nil {
		return err
	}
	s.notify(touched)
	return nil
}

func (s *Store) commit(fn func(tx *Tx) error) (map[string]bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx := &Tx{
		store:   s,
		puts:    make(map[string]map[string][]byte),
		deletes: make(map[string]map[string]bool),
	}
	if err := fn(tx); err != nil {
		return nil, err
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer dbTx.Rollback()

	for collection, docs := range tx.puts {
		for id, raw := range docs {
			sealed, err := seal(s.aead, raw)
			if err != nil {
				return nil, err
			}
			if _, err := dbTx.Exec(
				"INSERT OR REPLACE INTO objects (collection, id, payload) VALUES (?, ?, ?)",
				collection, id, sealed,
			); err != nil {
				return nil, fmt.Errorf("put %s/%s: %w", collection, id, err)
			}
		}
	}
	for collection, ids := range tx.deletes {
		for id := range ids {
			if _, err := dbTx.Exec(
				"DELETE FROM objects WHERE collection = ? AND id = ?",
				collection, id,
			); err != nil {
				return nil, fmt.Errorf("delete %s/%s: %w", collection, id, err)
			}
		}
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	touched := make(map[string]bool)
	s.mu.Lock()
	for collection, docs := range tx.puts {
		if s.data[collection] == nil {
			s.data[collection] = make(map[string][]byte)
		}
		for id, raw := range docs {
			s.data[collection][id] = raw
		}
		touched[collection] = true
	}
	for collection, ids := range tx.deletes {
		for id := range ids {
			delete(s.data[collection], id)
		}
		touched[collection] = true
	}
	s.mu.Unlock()

	return touched, nil
}

// Get unmarshals collection/id into out. The second return is false when
// the id does not exist.
func (s *Store) Get(collection, id string, out any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.data[collection][id]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("unmarshal %s/%s: %w", collection, id, err)
	}
	return true, nil
}

// Snapshot returns a copy of every document in the collection.
func (s *Store) Snapshot(collection string) map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(s.data[collection]))
	for id, raw := range s.data[collection] {
		cp := make([]byte, len(raw))
		copy(cp, raw)
		out[id] = cp
	}
	return out
}

// Watch registers fn to run after every committed write touching the
// collection. The returned func cancels the registration.
func (s *Store) Watch(collection string, fn func()) (cancel func()) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watchers[collection] == nil {
		s.watchers[collection] = make(map[int]func())
	}
	id := s.nextWatch
	s.nextWatch++
	s.watchers[collection][id] = fn
	return func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		delete(s.watchers[collection], id)
	}
}

func (s *Store) notify(collections map[string]bool) {
	s.watchMu.Lock()
	var fns []func()
	for collection := range collections {
		for _, fn := range s.watchers[collection] {
			fns = append(fns, fn)
		}
	}
	s.watchMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
