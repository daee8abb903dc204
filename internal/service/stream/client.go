package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"SolGate/internal/domain/models"
	drepo "SolGate/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements an EventStream backed by a provider's enhanced
// WebSocket feed, subscribing to transaction notifications for a set of
// watched accounts.
type Client struct {
	apiKey         string
	websocketURL   string
	accounts       []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a provider EventStream.
func New(apiKey, websocketURL string, accounts []string, reconnectDelay, pingInterval time.Duration) drepo.EventStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		accounts:       accounts,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := c.websocketURL
	if c.apiKey != "" {
		u = fmt.Sprintf("%s?api-key=%s", c.websocketURL, c.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("stream: connected")
	return nil
}

// Subscribe requests transaction notifications for the watched accounts.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("stream not connected")
	}
	msg := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "transactionSubscribe",
		"params": []interface{}{
			map[string]interface{}{"accountInclude": c.accounts},
			map[string]interface{}{"commitment": "confirmed", "encoding": "jsonParsed"},
		},
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe accounts: %w", err)
	}
	log.Printf("stream: subscribed %d accounts", len(c.accounts))
	return nil
}

type notification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Transaction models.WebhookEvent `json:"transaction"`
		} `json:"result"`
	} `json:"params"`
}

// Read streams transaction events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.WebhookEvent, <-chan error) {
	events := make(chan *models.WebhookEvent, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("stream conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("stream read: %w", err)
					return
				}
				var n notification
				if err := json.Unmarshal(b, &n); err != nil {
					// ignore non-notification frames
					continue
				}
				if n.Method != "transactionNotification" {
					continue
				}
				ev := n.Params.Result.Transaction
				select {
				case events <- &ev:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return events, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
