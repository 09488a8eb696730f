// Package upstreamtest provides fake third-party servers for tests.
package upstreamtest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Response is a canned reply for one path.
type Response struct {
	Status      int
	Body        string
	ContentType string
	Header      map[string]string
}

// Server wraps an httptest server that answers from a path table and
// counts requests.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	hits  map[string]int
	total int
}

// NewServer starts a fake server. Unknown paths get 404. assert, when set,
// runs for every request.
func NewServer(t *testing.T, responses map[string]Response, assert func(*testing.T, *http.Request)) *Server {
	t.Helper()
	s := &Server{hits: make(map[string]int)}
	s.Server = httptest.NewServer(s.handler(t, responses, assert))
	t.Cleanup(s.Close)
	return s
}

// NewTLSServer is NewServer with a self-signed certificate.
func NewTLSServer(t *testing.T, responses map[string]Response, assert func(*testing.T, *http.Request)) *Server {
	t.Helper()
	s := &Server{hits: make(map[string]int)}
	s.Server = httptest.NewTLSServer(s.handler(t, responses, assert))
	t.Cleanup(s.Close)
	return s
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// Total returns the number of requests served.
func (s *Server) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Server) handler(t *testing.T, responses map[string]Response, assert func(*testing.T, *http.Request)) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		s.mu.Lock()
		s.hits[request.URL.Path]++
		s.total++
		s.mu.Unlock()

		if assert != nil {
			assert(t, request)
		}

		response, ok := responses[request.URL.Path]
		if !ok {
			http.NotFound(writer, request)
			return
		}

		status := response.Status
		if status == 0 {
			status = http.StatusOK
		}
		contentType := response.ContentType
		if contentType == "" {
			contentType = "application/json"
		}

		for k, v := range response.Header {
			writer.Header().Set(k, v)
		}
		writer.Header().Set("Content-Type", contentType)
		writer.WriteHeader(status)
		_, _ = writer.Write([]byte(response.Body))
	})
}
