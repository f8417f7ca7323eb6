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

package provision

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"

	"smagate/internal/settings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const maxPayload = 4 << 10

// Handler exposes the channels over HTTP for the companion web app:
//
//	GET  /             channel list
//	GET  /{channel}    raw channel value
//	PUT  /{channel}    write the request body
//	POST /connect      start a client session
//	POST /disconnect   end it
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleList)
	r.Post("/connect", func(w http.ResponseWriter, _ *http.Request) {
		s.Connect()
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/disconnect", func(w http.ResponseWriter, _ *http.Request) {
		s.Disconnect()
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/{channel}", s.handleRead)
	r.Put("/{channel}", s.handleWrite)
	return r
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	type entry struct {
		Name string `json:"name"`
		UUID string `json:"uuid"`
	}
	seen := make(map[string]bool)
	var list []entry
	for _, ch := range s.channels {
		if seen[ch.Name()] {
			continue
		}
		seen[ch.Name()] = true
		list = append(list, entry{Name: ch.Name(), UUID: ch.UUID()})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"device":    s.name,
		"connected": s.Connected(),
		"channels":  list,
	})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	data, err := s.Read(chi.URLParam(r, "channel"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayload))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err := s.Write(chi.URLParam(r, "channel"), data); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownChannel):
		return http.StatusNotFound
	case errors.Is(err, ErrSizeMismatch),
		errors.Is(err, ErrInvalidJSON),
		errors.Is(err, ErrNoCommand),
		errors.Is(err, settings.ErrMarkerMismatch),
		errors.Is(err, settings.ErrLengthMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
