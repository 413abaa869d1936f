package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// ConfirmClient waits for transaction confirmations over the Solana
// WebSocket endpoint using signatureSubscribe. Each wait uses its own
// short-lived connection so a dropped socket never strands later trades.
type ConfirmClient struct {
	endpoint     string
	writeTimeout time.Duration
	readTimeout  time.Duration
}

// NewConfirmClient creates a confirmation client for a ws:// or wss://
// endpoint.
func NewConfirmClient(endpoint string) *ConfirmClient {
	return &ConfirmClient{
		endpoint:     endpoint,
		writeTimeout: 10 * time.Second,
		readTimeout:  60 * time.Second,
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSignatureNotification struct {
	Method string `json:"method"`
	Params *struct {
		Result struct {
			Context struct {
				Slot int64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Err interface{} `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// WaitConfirmed blocks until the signature reaches confirmed commitment or
// ctx expires. Returns the slot the transaction landed in.
func (c *ConfirmClient) WaitConfirmed(ctx context.Context, signature string) (int64, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]string{"commitment": "confirmed"},
		},
	}

	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, fmt.Errorf("read notification: %w", err)
		}

		var notif wsSignatureNotification
		if err := json.Unmarshal(message, &notif); err != nil {
			continue
		}
		if notif.Method != "signatureNotification" || notif.Params == nil {
			// Subscription confirmation or unrelated frame.
			continue
		}

		if txErr := notif.Params.Result.Value.Err; txErr != nil {
			return 0, fmt.Errorf("transaction failed on chain: %v", txErr)
		}
		return notif.Params.Result.Context.Slot, nil
	}
}
