package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// Client makes calls against an rpc server. Every call uses its own
// connection.
type Client struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
}

// NewClient constructs a client for the server at the address. A call gives
// up after the timeout.
func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{
		addr:    addr,
		timeout: timeout,
	}
}

// Call sends the request for the method and decodes the result into the
// value pointed to by result, which can be nil.
func (c *Client) Call(ctx context.Context, result any, method string, params ...any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	req := Request{
		Method: method,
		Params: make([]json.RawMessage, len(params)),
	}
	for i, param := range params {
		data, err := json.Marshal(param)
		if err != nil {
			return fmt.Errorf("marshal param %d: %w", i, err)
		}
		req.Params[i] = data
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		return errors.New("receive: connection closed")
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if resp.Error != "" {
		return errors.New(resp.Error)
	}

	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	return nil
}

// Param decodes the parameter at the index into the value pointed to by v.
func Param(params []json.RawMessage, i int, v any) error {
	if i >= len(params) {
		return fmt.Errorf("missing param %d", i)
	}

	if err := json.Unmarshal(params[i], v); err != nil {
		return fmt.Errorf("param %d: %w", i, err)
	}

	return nil
}
