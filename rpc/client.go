package rpc

import (
	"fmt"
	"net/rpc"

	"github.com/shenjiangwei/refheap"
)

// Client is a thin net/rpc wrapper presenting refheap.Manager's
// operation set, except PointerOf, for a caller on the other end of
// Serve.
type Client struct {
	conn *rpc.Client
}

// Dial connects to a Server listening at addr.
func Dial(addr string) (*Client, error) {
	conn, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// AllocRef reserves size bytes on the server and returns the
// resulting handle.
func (c *Client) AllocRef(size uint32) (refheap.Handle, error) {
	req := &AllocRefRequest{Size: size}
	resp := &AllocRefResponse{}
	if err := c.conn.Call("Server.AllocRef", req, resp); err != nil {
		return refheap.InvalidHandle, err
	}
	return resp.Handle, nil
}

// IncrRef increments h's reference count on the server.
func (c *Client) IncrRef(h refheap.Handle) error {
	return c.conn.Call("Server.IncrRef", &HandleRequest{Handle: h}, &HandleResponse{})
}

// DecrRef decrements h's reference count on the server.
func (c *Client) DecrRef(h refheap.Handle) (bool, error) {
	resp := &DecrRefResponse{}
	if err := c.conn.Call("Server.DecrRef", &HandleRequest{Handle: h}, resp); err != nil {
		return false, err
	}
	return resp.Alive, nil
}

// FreeRef releases h's allocation on the server unconditionally.
func (c *Client) FreeRef(h refheap.Handle) error {
	return c.conn.Call("Server.FreeRef", &HandleRequest{Handle: h}, &HandleResponse{})
}

// SizeOf returns h's allocated size.
func (c *Client) SizeOf(h refheap.Handle) (uint32, error) {
	resp := &SizeOfResponse{}
	if err := c.conn.Call("Server.SizeOf", &HandleRequest{Handle: h}, resp); err != nil {
		return 0, err
	}
	return resp.Size, nil
}

// RefCountOf returns h's current reference count.
func (c *Client) RefCountOf(h refheap.Handle) (uint32, error) {
	resp := &RefCountOfResponse{}
	if err := c.conn.Call("Server.RefCountOf", &HandleRequest{Handle: h}, resp); err != nil {
		return 0, err
	}
	return resp.RefCount, nil
}

// Compact runs a stop-the-world compaction pass on the server.
func (c *Client) Compact() error {
	return c.conn.Call("Server.Compact", &CompactRequest{}, &CompactResponse{})
}

// Stats returns a snapshot of the server's running counters.
func (c *Client) Stats() (refheap.Stats, error) {
	resp := &StatsResponse{}
	if err := c.conn.Call("Server.Stats", &StatsRequest{}, resp); err != nil {
		return refheap.Stats{}, err
	}
	return resp.Stats, nil
}

// Check runs the server's integrity checker and turns a reported
// violation into a Go error.
func (c *Client) Check() error {
	resp := &CheckResponse{}
	if err := c.conn.Call("Server.Check", &CheckRequest{}, resp); err != nil {
		return err
	}
	if resp.Violation != "" {
		return fmt.Errorf("refheap: %s", resp.Violation)
	}
	return nil
}
