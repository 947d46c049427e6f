// Package bridge implements domain.Bridger against a bridge relay service
// that streams transfer progress over a websocket. The relay owns routing
// and liquidity; this client only submits requests and relays progress.
package bridge

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

const (
	handshakeTimeout = 15 * time.Second
	writeWait        = 10 * time.Second
	// readWait bounds the gap between progress messages. Bridge legs can be
	// slow, but a healthy relay still heartbeats well inside this window.
	readWait = 5 * time.Minute
)

// request is the wire form of a bridge-and-execute submission.
type request struct {
	Type         string `json:"type"`
	Token        string `json:"token"`
	Amount       string `json:"amount"`
	SrcChainID   uint64 `json:"src_chain_id"`
	DestChainID  uint64 `json:"dest_chain_id"`
	DestContract string `json:"dest_contract"`
	DestCalldata string `json:"dest_calldata"`
}

// progressMsg is the wire form of one relay progress notification.
type progressMsg struct {
	Type       string `json:"type"`
	Step       string `json:"step,omitempty"`
	StepsTotal int    `json:"steps_total,omitempty"`
	TxHash     string `json:"tx_hash,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Client talks to one bridge relay endpoint. Each BridgeAndExecute call
// opens its own connection; transfers are long-lived and independent, so
// sharing a socket would only couple their failure domains.
type Client struct {
	wsURL  string
	logger *slog.Logger
}

var _ domain.Bridger = (*Client)(nil)

// NewClient creates a bridge relay client for the given websocket URL.
func NewClient(wsURL string, logger *slog.Logger) *Client {
	return &Client{
		wsURL:  wsURL,
		logger: logger.With(slog.String("component", "bridge")),
	}
}

// BridgeAndExecute submits the transfer and returns a channel of progress
// notifications. The channel closes after a completed or error notification,
// or when ctx is cancelled. The first error on the stream is terminal; the
// relay does not retry.
func (c *Client) BridgeAndExecute(ctx context.Context, req domain.BridgeRequest) (<-chan domain.BridgeProgress, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: connect: %w", err)
	}

	amount := "0"
	if req.Amount != nil {
		amount = req.Amount.String()
	}
	wire := request{
		Type:         "bridge_and_execute",
		Token:        req.Token.Hex(),
		Amount:       amount,
		SrcChainID:   req.SrcChainID,
		DestChainID:  req.DestChainID,
		DestContract: req.DestContract.Hex(),
		DestCalldata: hex.EncodeToString(req.DestCalldata),
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(wire); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bridge: submit request: %w", err)
	}

	c.logger.Info("bridge transfer submitted",
		slog.Uint64("src_chain", req.SrcChainID),
		slog.Uint64("dest_chain", req.DestChainID),
		slog.String("amount", amount),
	)

	out := make(chan domain.BridgeProgress, 16)
	go c.readProgress(ctx, conn, out)
	return out, nil
}

// readProgress pumps relay notifications into out until a terminal message,
// a read failure, or cancellation.
func (c *Client) readProgress(ctx context.Context, conn *websocket.Conn, out chan<- domain.BridgeProgress) {
	defer close(out)
	defer conn.Close()

	// Unblock the read loop when the caller gives up.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readWait))

		var msg progressMsg
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.emit(ctx, out, domain.BridgeProgress{
				Kind:  domain.BridgeError,
				Error: fmt.Sprintf("progress stream broken: %v", err),
			})
			return
		}

		progress := domain.BridgeProgress{
			Kind:       domain.BridgeProgressKind(msg.Type),
			Step:       msg.Step,
			StepsTotal: msg.StepsTotal,
			TxHash:     msg.TxHash,
			Error:      msg.Error,
		}
		if !c.emit(ctx, out, progress) {
			return
		}

		switch progress.Kind {
		case domain.BridgeCompleted, domain.BridgeError:
			return
		}
	}
}

func (c *Client) emit(ctx context.Context, out chan<- domain.BridgeProgress, p domain.BridgeProgress) bool {
	select {
	case out <- p:
		return true
	case <-ctx.Done():
		return false
	}
}
