// Package xivgeartest serves canned xivgear responses for tests.
package xivgeartest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
)

// Server answers shortlink and item lookups from fixed bodies. One server
// stands in for both the API and data hosts.
type Server struct {
	*httptest.Server

	// Sets maps a set id to its shortlink body
	Sets map[string]string
	// Items maps a job to its catalogue body
	Items map[string]string

	itemFetches atomic.Int32
}

// NewServer starts a server with no sets or catalogues
func NewServer() *Server {
	s := &Server{Sets: map[string]string{}, Items: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/shortlink/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := s.Sets[strings.TrimPrefix(r.URL.Path, "/shortlink/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/Items", func(w http.ResponseWriter, r *http.Request) {
		s.itemFetches.Add(1)
		body, ok := s.Items[r.URL.Query().Get("job")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	s.Server = httptest.NewServer(mux)
	return s
}

// SetURL returns an xivgear.app link to the set with the given id
func SetURL(id string) string {
	return "https://xivgear.app/?page=sl%7C" + id
}

// ItemFetches counts catalogue requests served
func (s *Server) ItemFetches() int {
	return int(s.itemFetches.Load())
}
