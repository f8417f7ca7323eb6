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

package rootserv

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"smagate/pkg/logger"
)

// RootServer holds a mux and the list of attached sub-handlers.
type RootServer struct {
	log        *logger.Logger
	addr       string
	title      string
	mux        *http.ServeMux
	subservers map[string]string // path -> description
	mainPage   http.Handler
}

// New creates a new RootServer bound to an address.
func New(addr, title string) *RootServer {
	ms := &RootServer{
		addr:       addr,
		title:      title,
		mux:        http.NewServeMux(),
		subservers: make(map[string]string),
		log:        logger.New("HTTPServer"),
	}
	ms.mux.HandleFunc("/index", ms.handleIndex)
	ms.mux.HandleFunc("/", ms.handleRoot)
	return ms
}

// Attach registers a sub-handler under path; the handler sees paths with the
// prefix stripped. Attaching "/" sets the main page.
func (ms *RootServer) Attach(path, desc string, handler http.Handler) {
	if path == "/" {
		ms.mainPage = handler
		ms.log.Info("main page registered at /")
		return
	}

	path = "/" + strings.Trim(path, "/")
	ms.subservers[path] = desc
	ms.mux.Handle(path+"/", http.StripPrefix(path, handler))
	ms.log.Info("attach: %s (%s)", path, desc)
}

// Handler exposes the mux, mostly for tests.
func (ms *RootServer) Handler() http.Handler {
	return ms.mux
}

func (ms *RootServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if path := strings.TrimRight(r.URL.Path, "/"); path != "" {
		if _, ok := ms.subservers[path]; ok {
			http.Redirect(w, r, path+"/", http.StatusMovedPermanently)
			return
		}
	}
	if r.URL.Path == "/" && ms.mainPage != nil {
		ms.mainPage.ServeHTTP(w, r)
		return
	}
	if r.URL.Path == "/" {
		http.Redirect(w, r, "/index", http.StatusTemporaryRedirect)
		return
	}
	http.NotFound(w, r)
}

// handleIndex lists every attached sub-server.
func (ms *RootServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s</title></head><body>\n", ms.title)
	fmt.Fprintf(w, "<h1>%s</h1><ul>\n", ms.title)

	paths := make([]string, 0, len(ms.subservers))
	for path := range ms.subservers {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		fmt.Fprintf(w, `<li><a href="%s/">%s</a> - %s</li>`+"\n", path, path, ms.subservers[path])
	}

	fmt.Fprintln(w, "</ul></body></html>")
}

// Run starts serving and blocks until the context is canceled.
func (ms *RootServer) Run(ctx context.Context) {
	ms.log.Info("listening on %s", ms.addr)

	srv := &http.Server{
		Addr:              ms.addr,
		Handler:           ms.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		ms.log.Info("stopped")
	case err := <-errCh:
		ms.log.Error("stopped: %T %+v", err, err)
	}
}
