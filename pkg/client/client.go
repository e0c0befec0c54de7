// Package client's Client type is the coordinator-facing counterpart
// of cmd/worker: it dials out, writes one frame, and for calls that
// expect an answer reads the reply off the same connection before
// closing it, matching the original TaskClient's one-shot-connection
// style.
package client

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/taskmesh/coordinator/internal/protocol"
)

// Client submits tasks to and queries task status from a coordinator
// at a fixed address.
type Client struct {
	addr string
	opts *options
}

// New returns a Client targeting the coordinator's TCP message
// endpoint at addr (host:port).
func New(addr string, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Client{addr: addr, opts: o}
}

// SubmitTask sends a submit_task frame and returns the task's id. The
// client generates a fresh UUID and sends it as the task's id, so the
// returned id is the one the coordinator stores.
func (c *Client) SubmitTask(name, data string, priority int) (string, error) {
	id := uuid.New().String()
	payload := protocol.SubmitTaskPayload{
		Type: protocol.TypeSubmitTask,
		Task: protocol.SubmitTaskTask{
			ID:       id,
			Name:     name,
			Data:     data,
			Priority: priority,
		},
	}

	conn, err := c.dial()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := c.writeFrame(conn, payload); err != nil {
		return "", fmt.Errorf("client: submit_task: %w", err)
	}
	return id, nil
}

// CheckStatus sends a check_status frame and reports whether the task
// has reached COMPLETED, reading the coordinator's response on the
// same connection per §6.
func (c *Client) CheckStatus(taskID string) (bool, error) {
	payload := protocol.CheckStatusPayload{
		Type:   protocol.TypeCheckStatus,
		TaskID: taskID,
	}

	conn, err := c.dial()
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if err := c.writeFrame(conn, payload); err != nil {
		return false, fmt.Errorf("client: check_status: %w", err)
	}

	buf := make([]byte, protocol.MaxFrameLen)
	n, err := conn.Read(buf)
	if err != nil {
		return false, fmt.Errorf("client: check_status: read response: %w", err)
	}

	var resp protocol.CheckStatusResponse
	if err := json.Unmarshal(buf[:n], &resp); err != nil {
		return false, fmt.Errorf("client: check_status: decode response: %w", err)
	}
	return resp.Completed, nil
}

func (c *Client) dial() (net.Conn, error) {
	d := net.Dialer{Timeout: c.opts.dialTimeout}
	conn, err := d.Dial("tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", c.addr, err)
	}
	return conn, nil
}

func (c *Client) writeFrame(conn net.Conn, payload any) error {
	data, err := protocol.Encode(payload)
	if err != nil {
		return err
	}
	_, err = conn.Write(data)
	return err
}
