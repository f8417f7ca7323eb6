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

package prefs

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Namespace("settings").Update(func(tx *Tx) error {
		tx.PutBool("a_j", true)
		tx.PutShort("d_r", 5)
		tx.PutLong("s_r", 120000)
		tx.PutBytes("d_e", []byte{1, 2, 3, 4, 5, 6, 7, 8})
		tx.PutString("sma_ip", "192.168.1.20")
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	ns := s2.Namespace("settings")

	if !ns.Bool("a_j", false) {
		t.Error("a_j not persisted")
	}
	if got := ns.Short("d_r", 0); got != 5 {
		t.Errorf("d_r = %d, want 5", got)
	}
	if got := ns.Long("s_r", 0); got != 120000 {
		t.Errorf("s_r = %d, want 120000", got)
	}
	eui := make([]byte, 8)
	if n := ns.Bytes("d_e", eui); n != 8 || !bytes.Equal(eui, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("d_e = %x (n=%d)", eui, n)
	}
	if got := ns.String("sma_ip", ""); got != "192.168.1.20" {
		t.Errorf("sma_ip = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "settings.prefs.tmp")); !errors.Is(err, os.ErrNotExist) {
		t.Error("temp file left behind")
	}
}

func TestDefaultsWhenAbsentOrMistyped(t *testing.T) {
	ns := NewMemory().Namespace("credentials")
	_ = ns.Update(func(tx *Tx) error {
		tx.PutString("valid", "yes")
		return nil
	})

	if ns.Bool("valid", false) {
		t.Error("string value read back as bool")
	}
	if got := ns.Short("missing", 7); got != 7 {
		t.Errorf("default short = %d, want 7", got)
	}
	dst := []byte{9, 9}
	if n := ns.Bytes("missing", dst); n != 0 || dst[0] != 9 {
		t.Error("absent bytes key touched dst")
	}
}

func TestFailedUpdateKeepsPreviousContents(t *testing.T) {
	s := NewMemory()
	ns := s.Namespace("settings")
	_ = ns.Update(func(tx *Tx) error {
		tx.PutShort("d_r", 3)
		return nil
	})

	// error from the batch itself
	err := ns.Update(func(tx *Tx) error {
		tx.PutShort("d_r", 4)
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := ns.Short("d_r", 0); got != 3 {
		t.Fatalf("d_r = %d after aborted batch, want 3", got)
	}

	// error from the commit
	s.be.(*memBackend).failStore = errors.New("disk full")
	err = ns.Update(func(tx *Tx) error {
		tx.PutShort("d_r", 4)
		return nil
	})
	if err == nil {
		t.Fatal("expected commit error")
	}
	if got := ns.Short("d_r", 0); got != 3 {
		t.Fatalf("d_r = %d after failed commit, want 3", got)
	}
}

func TestClearAndEraseAll(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	creds := s.Namespace("credentials")
	settings := s.Namespace("settings")
	for _, ns := range []*Namespace{creds, settings} {
		if err := ns.Update(func(tx *Tx) error {
			tx.PutBool("valid", true)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	if err := creds.Clear(); err != nil {
		t.Fatal(err)
	}
	if creds.Has("valid") {
		t.Error("credentials not cleared")
	}
	if !settings.Has("valid") {
		t.Error("Clear touched another namespace")
	}

	if err := s.EraseAll(); err != nil {
		t.Fatal(err)
	}
	if settings.Has("valid") {
		t.Error("EraseAll left settings")
	}
}
