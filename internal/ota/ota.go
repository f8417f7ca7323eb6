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

// Package ota receives firmware images over HTTP. While an update runs the
// acquisition loop stays suspended; a finished image triggers a reboot into
// the new version.
package ota

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"smagate/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	PendingImage = "pending.bin"
	maxImageSize = 64 << 20
)

type Phase string

const (
	Idle       Phase = "idle"
	Receiving  Phase = "receiving"
	Installing Phase = "installing"
	Failed     Phase = "failed"
)

// Rebooter restarts the gateway after a grace delay.
type Rebooter interface {
	Reboot(reason string)
}

// State is reported by GET /.
type State struct {
	Phase   Phase     `json:"state"`
	Session string    `json:"session,omitempty"`
	Bytes   int64     `json:"bytes"`
	SHA256  string    `json:"sha256,omitempty"`
	Error   string    `json:"error,omitempty"`
	Started time.Time `json:"started,omitzero"`
}

type Service struct {
	dir    string
	reboot Rebooter
	log    *logger.Logger

	mu    sync.Mutex
	state State
}

// New stores images below dir.
func New(dir string, reboot Rebooter) *Service {
	return &Service{
		dir:    dir,
		reboot: reboot,
		log:    logger.New("OTA"),
		state:  State{Phase: Idle},
	}
}

// PollActive reports whether an update is running.
func (s *Service) PollActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Phase == Receiving || s.state.Phase == Installing
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router := chi.NewRouter()
	router.Get("/", s.handleState)
	router.Post("/upload", s.handleUpload)
	router.ServeHTTP(w, r)
}

func (s *Service) handleState(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.State())
}

// handleUpload streams the request body into a session file. An optional
// ?sha256= query parameter is checked against the received image.
func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	session, ok := s.begin()
	if !ok {
		http.Error(w, "update already in progress", http.StatusConflict)
		return
	}
	s.log.Info("update %s started", session)

	n, sum, err := s.receive(session, http.MaxBytesReader(w, r.Body, maxImageSize))
	if err == nil {
		if want := r.URL.Query().Get("sha256"); want != "" && !strings.EqualFold(want, sum) {
			err = fmt.Errorf("checksum mismatch: got %s", sum)
		}
	}
	if err == nil {
		err = os.Rename(s.sessionPath(session), filepath.Join(s.dir, PendingImage))
	}
	if err != nil {
		os.Remove(s.sessionPath(session))
		s.fail(err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.state.Phase = Installing
	s.state.Bytes = n
	s.state.SHA256 = sum
	s.mu.Unlock()

	s.log.Info("update %s received: %d bytes, sha256 %s", session, n, sum)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(s.State())
	s.reboot.Reboot("firmware update")
}

func (s *Service) begin() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase == Receiving || s.state.Phase == Installing {
		return "", false
	}
	id := uuid.NewString()
	s.state = State{Phase: Receiving, Session: id, Started: time.Now()}
	return id, true
}

func (s *Service) receive(session string, body io.Reader) (int64, string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return 0, "", err
	}
	f, err := os.Create(s.sessionPath(session))
	if err != nil {
		return 0, "", err
	}
	n, sum, err := writeImage(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, sum, err
}

// writeImage copies body into f, synced, and returns its size and sha256.
func writeImage(f *os.File, body io.Reader) (int64, string, error) {
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), body)
	if err != nil {
		return n, "", fmt.Errorf("receive image: %w", err)
	}
	if n == 0 {
		return 0, "", fmt.Errorf("empty image")
	}
	if err := f.Sync(); err != nil {
		return n, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Service) fail(err error) {
	s.log.Error("update failed: %v", err)
	s.mu.Lock()
	s.state.Phase = Failed
	s.state.Error = err.Error()
	s.mu.Unlock()
}

func (s *Service) sessionPath(session string) string {
	return filepath.Join(s.dir, session+".bin")
}
