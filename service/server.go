package service

import (
	"context"
	"net"
	"net/http"
	"sync"
)

type httpServer struct {
	mu     sync.Mutex
	ctx    context.Context
	server *http.Server
	addr   net.Addr
}

func (s *httpServer) serve(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	server := &http.Server{Handler: handler}

	s.mu.Lock()
	s.server = server
	s.ctx = ctx
	s.addr = ln.Addr()
	s.mu.Unlock()

	return server.Serve(ln)
}

// Addr returns the bound address, or nil before the server listens
func (s *httpServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *httpServer) Shutdown() error {
	s.mu.Lock()
	server, ctx := s.server, s.ctx
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
