package rpc

import (
	"net"
	"net/rpc"

	"github.com/shenjiangwei/refheap"
	"github.com/shenjiangwei/refheap/internal/rlog"
)

// Server exposes a *refheap.Manager's operations as net/rpc methods:
// a thin adapter with one method per allocator operation, each taking
// a request/response pair and forwarding straight to the wrapped
// manager.
type Server struct {
	manager *refheap.Manager
}

// NewServer wraps m for RPC exposure.
func NewServer(m *refheap.Manager) *Server {
	return &Server{manager: m}
}

// AllocRef reserves req.Size bytes and returns the resulting handle.
func (s *Server) AllocRef(req *AllocRefRequest, resp *AllocRefResponse) error {
	h, err := s.manager.AllocRef(req.Size)
	if err != nil {
		return err
	}
	resp.Handle = h
	return nil
}

// IncrRef increments req.Handle's reference count.
func (s *Server) IncrRef(req *HandleRequest, resp *HandleResponse) error {
	return s.manager.IncrRef(req.Handle)
}

// DecrRef decrements req.Handle's reference count.
func (s *Server) DecrRef(req *HandleRequest, resp *DecrRefResponse) error {
	alive, err := s.manager.DecrRef(req.Handle)
	if err != nil {
		return err
	}
	resp.Alive = alive
	return nil
}

// FreeRef releases req.Handle's allocation unconditionally.
func (s *Server) FreeRef(req *HandleRequest, resp *HandleResponse) error {
	return s.manager.FreeRef(req.Handle)
}

// SizeOf returns req.Handle's allocated size.
func (s *Server) SizeOf(req *HandleRequest, resp *SizeOfResponse) error {
	size, err := s.manager.SizeOf(req.Handle)
	if err != nil {
		return err
	}
	resp.Size = size
	return nil
}

// RefCountOf returns req.Handle's current reference count.
func (s *Server) RefCountOf(req *HandleRequest, resp *RefCountOfResponse) error {
	rc, err := s.manager.RefCountOf(req.Handle)
	if err != nil {
		return err
	}
	resp.RefCount = rc
	return nil
}

// Compact runs a stop-the-world compaction pass.
func (s *Server) Compact(req *CompactRequest, resp *CompactResponse) error {
	return s.manager.Compact()
}

// Stats returns a snapshot of the manager's running counters.
func (s *Server) Stats(req *StatsRequest, resp *StatsResponse) error {
	resp.Stats = s.manager.Stats()
	return nil
}

// Check runs the read-only integrity checker.
func (s *Server) Check(req *CheckRequest, resp *CheckResponse) error {
	if err := s.manager.Check(); err != nil {
		resp.Violation = err.Error()
	}
	return nil
}

// Serve listens on addr and hands the listener to ServeListener, which
// registers a Server wrapping m and blocks accepting connections.
func Serve(addr string, m *refheap.Manager) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	rlog.Info("rpc", "server listening", map[string]any{"addr": ln.Addr().String()})
	return ServeListener(ln, m)
}

// ServeListener registers m under net/rpc's default codec and blocks
// accepting connections on ln. It is split out from Serve so tests
// and embedders that manage their own listener (e.g. to bind an
// ephemeral port) can drive the accept loop directly.
func ServeListener(ln net.Listener, m *refheap.Manager) error {
	s := NewServer(m)
	srv := rpc.NewServer()
	if err := srv.Register(s); err != nil {
		return err
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go srv.ServeConn(conn)
	}
}
