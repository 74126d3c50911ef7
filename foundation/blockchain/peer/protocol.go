package peer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/gorilla/websocket"
)

// Set of message types that make up the peer protocol.
const (
	TypeBlock    = "block"
	TypeGetChain = "get_chain"
	TypeChain    = "chain"
	TypeError    = "error"
)

// Path is the route on a node that accepts peer connections.
const Path = "/v1/node/peer"

// ErrUnexpectedMessage is returned when a peer responds with the wrong
// type of message.
var ErrUnexpectedMessage = errors.New("unexpected peer message")

// Message represents a single message exchanged between peers.
type Message struct {
	Type  string               `json:"type"`
	Block *database.BlockData  `json:"block,omitempty"`
	Chain []database.BlockData `json:"chain,omitempty"`
	Error string               `json:"error,omitempty"`
}

// =============================================================================

// Client provides support for talking to peers over a websocket
// connection. Every call opens its own connection.
type Client struct {
	dialer  *websocket.Dialer
	timeout time.Duration
}

// NewClient constructs a client that gives up on a peer after the
// specified timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
		},
		timeout: timeout,
	}
}

// SendBlock sends the block to the peer without waiting for a response.
func (c *Client) SendBlock(ctx context.Context, pr Peer, blockData database.BlockData) error {
	conn, deadline, err := c.dial(ctx, pr)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetWriteDeadline(deadline)

	msg := Message{
		Type:  TypeBlock,
		Block: &blockData,
	}

	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%s: send block: %w", pr, err)
	}

	return closeConn(conn, deadline)
}

// RequestChain asks the peer for its full chain.
func (c *Client) RequestChain(ctx context.Context, pr Peer) ([]database.BlockData, error) {
	conn, deadline, err := c.dial(ctx, pr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	if err := conn.WriteJSON(Message{Type: TypeGetChain}); err != nil {
		return nil, fmt.Errorf("%s: request chain: %w", pr, err)
	}

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, fmt.Errorf("%s: read chain: %w", pr, err)
	}

	switch msg.Type {
	case TypeChain:
		closeConn(conn, deadline)
		return msg.Chain, nil

	case TypeError:
		return nil, fmt.Errorf("%s: %w: %s", pr, ErrUnexpectedMessage, msg.Error)
	}

	return nil, fmt.Errorf("%s: %w: %q", pr, ErrUnexpectedMessage, msg.Type)
}

// dial opens a connection to the peer bounded by the client timeout and
// the context deadline, whichever comes first.
func (c *Client) dial(ctx context.Context, pr Peer) (*websocket.Conn, time.Time, error) {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	u := url.URL{Scheme: "ws", Host: pr.Host, Path: Path}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%s: dial: %w", pr, err)
	}

	return conn, deadline, nil
}

// closeConn performs the websocket close handshake.
func closeConn(conn *websocket.Conn, deadline time.Time) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return conn.WriteControl(websocket.CloseMessage, msg, deadline)
}

// =============================================================================

// Handler represents the behavior a node provides to the peers that
// connect to it.
type Handler interface {
	ProcessProposedBlock(blockData database.BlockData) error
	ChainData() []database.BlockData
}

// Serve reads messages from a connected peer until the connection is
// closed or the context is cancelled. Proposed blocks are not answered,
// a rejected block is only reported to the event handler.
func Serve(ctx context.Context, conn *websocket.Conn, h Handler, evHandler func(v string, args ...any)) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		switch msg.Type {
		case TypeBlock:
			if msg.Block == nil {
				evHandler("peer: Serve: WARNING: block message without a block")
				continue
			}

			if err := h.ProcessProposedBlock(*msg.Block); err != nil {
				evHandler("peer: Serve: block[%d]: WARNING: %s", msg.Block.Header.Number, err)
			}

		case TypeGetChain:
			if err := conn.WriteJSON(Message{Type: TypeChain, Chain: h.ChainData()}); err != nil {
				return err
			}

		default:
			if err := conn.WriteJSON(Message{Type: TypeError, Error: fmt.Sprintf("unknown message type %q", msg.Type)}); err != nil {
				return err
			}
		}
	}
}
