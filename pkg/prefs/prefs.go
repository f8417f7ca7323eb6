// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package prefs is a small namespaced key-value store for persisted device
// settings. Each namespace is one CBOR file that is only ever replaced whole.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

const fileExt = ".prefs"

type kind uint8

const (
	kindBool kind = iota + 1
	kindInt
	kindBytes
	kindString
)

type entry struct {
	Kind  kind   `cbor:"1,keyasint"`
	Int   int64  `cbor:"2,keyasint,omitempty"`
	Bytes []byte `cbor:"3,keyasint,omitempty"`
	Str   string `cbor:"4,keyasint,omitempty"`
}

type table map[string]entry

// backend reads and replaces whole namespaces.
type backend interface {
	load(ns string) (table, error)
	store(ns string, t table) error
	erase(ns string) error
	eraseAll() error
}

type Store struct {
	mu sync.Mutex
	be backend
}

// Open returns a store keeping one file per namespace under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prefs: create dir: %w", err)
	}
	return &Store{be: &fileBackend{dir: dir}}, nil
}

// NewMemory returns a store that lives only as long as the process.
func NewMemory() *Store {
	return &Store{be: &memBackend{spaces: make(map[string]table)}}
}

func (s *Store) Namespace(name string) *Namespace {
	return &Namespace{store: s, name: name}
}

// EraseAll removes every namespace.
func (s *Store) EraseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.be.eraseAll()
}

type Namespace struct {
	store *Store
	name  string
}

func (n *Namespace) get(key string, want kind) (entry, bool) {
	n.store.mu.Lock()
	t, err := n.store.be.load(n.name)
	n.store.mu.Unlock()
	if err != nil {
		return entry{}, false
	}
	e, ok := t[key]
	if !ok || e.Kind != want {
		return entry{}, false
	}
	return e, true
}

func (n *Namespace) Bool(key string, def bool) bool {
	if e, ok := n.get(key, kindBool); ok {
		return e.Int != 0
	}
	return def
}

func (n *Namespace) Short(key string, def int16) int16 {
	if e, ok := n.get(key, kindInt); ok {
		return int16(e.Int)
	}
	return def
}

func (n *Namespace) Long(key string, def uint32) uint32 {
	if e, ok := n.get(key, kindInt); ok {
		return uint32(e.Int)
	}
	return def
}

func (n *Namespace) String(key string, def string) string {
	if e, ok := n.get(key, kindString); ok {
		return e.Str
	}
	return def
}

// Bytes copies the stored value into dst and reports how many bytes were
// copied; dst is left untouched when the key is absent.
func (n *Namespace) Bytes(key string, dst []byte) int {
	if e, ok := n.get(key, kindBytes); ok {
		return copy(dst, e.Bytes)
	}
	return 0
}

func (n *Namespace) Has(key string) bool {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	t, err := n.store.be.load(n.name)
	if err != nil {
		return false
	}
	_, ok := t[key]
	return ok
}

// Update applies fn's puts to a copy of the namespace and commits the copy
// in one write. Nothing is written when fn returns an error.
func (n *Namespace) Update(fn func(tx *Tx) error) error {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()

	cur, err := n.store.be.load(n.name)
	if err != nil {
		return err
	}
	tx := &Tx{t: make(table, len(cur))}
	for k, v := range cur {
		tx.t[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}
	return n.store.be.store(n.name, tx.t)
}

// Clear removes every key of the namespace.
func (n *Namespace) Clear() error {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	return n.store.be.erase(n.name)
}

// Tx collects puts for Namespace.Update.
type Tx struct {
	t table
}

func (tx *Tx) PutBool(key string, v bool) {
	var i int64
	if v {
		i = 1
	}
	tx.t[key] = entry{Kind: kindBool, Int: i}
}

func (tx *Tx) PutShort(key string, v int16) {
	tx.t[key] = entry{Kind: kindInt, Int: int64(v)}
}

func (tx *Tx) PutLong(key string, v uint32) {
	tx.t[key] = entry{Kind: kindInt, Int: int64(v)}
}

func (tx *Tx) PutString(key, v string) {
	tx.t[key] = entry{Kind: kindString, Str: v}
}

func (tx *Tx) PutBytes(key string, v []byte) {
	tx.t[key] = entry{Kind: kindBytes, Bytes: append([]byte(nil), v...)}
}

func (tx *Tx) Remove(key string) {
	delete(tx.t, key)
}

type fileBackend struct {
	dir string
}

func (f *fileBackend) path(ns string) string {
	return filepath.Join(f.dir, ns+fileExt)
}

func (f *fileBackend) load(ns string) (table, error) {
	data, err := os.ReadFile(f.path(ns))
	if errors.Is(err, os.ErrNotExist) {
		return table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("prefs: read %s: %w", ns, err)
	}
	t := table{}
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("prefs: decode %s: %w", ns, err)
	}
	return t, nil
}

// store writes to a temp file, syncs it and renames it over the old one so a
// power cut leaves either the old or the new namespace.
func (f *fileBackend) store(ns string, t table) error {
	data, err := cbor.Marshal(t)
	if err != nil {
		return fmt.Errorf("prefs: encode %s: %w", ns, err)
	}

	final := f.path(ns)
	tmp := final + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("prefs: create temp: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("prefs: write %s: %w", ns, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("prefs: sync %s: %w", ns, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("prefs: close %s: %w", ns, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("prefs: commit %s: %w", ns, err)
	}
	return nil
}

func (f *fileBackend) erase(ns string) error {
	err := os.Remove(f.path(ns))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("prefs: erase %s: %w", ns, err)
	}
	return nil
}

func (f *fileBackend) eraseAll() error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("prefs: list: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		if err := f.erase(strings.TrimSuffix(e.Name(), fileExt)); err != nil {
			return err
		}
	}
	return nil
}

type memBackend struct {
	spaces map[string]table
	// failStore makes the next store call fail; tests use it to check
	// that a failed commit leaves the previous contents.
	failStore error
}

func (m *memBackend) load(ns string) (table, error) {
	t := table{}
	for k, v := range m.spaces[ns] {
		t[k] = v
	}
	return t, nil
}

func (m *memBackend) store(ns string, t table) error {
	if err := m.failStore; err != nil {
		m.failStore = nil
		return err
	}
	m.spaces[ns] = t
	return nil
}

func (m *memBackend) erase(ns string) error {
	delete(m.spaces, ns)
	return nil
}

func (m *memBackend) eraseAll() error {
	clear(m.spaces)
	return nil
}
