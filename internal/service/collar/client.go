package collar

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"CollarPulse/internal/domain/models"
	drepo "CollarPulse/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements a CollarStream backed by the gateway WebSocket feed.
type Client struct {
	apiKey         string
	websocketURL   string
	collarIDs      []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new gateway CollarStream.
func New(apiKey, websocketURL string, collarIDs []string, reconnectDelay, pingInterval time.Duration) drepo.CollarStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		collarIDs:      collarIDs,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("gateway connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("gateway: connected")
	return nil
}

// Subscribe subscribes to configured collars. An empty list subscribes to
// the whole herd.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("gateway not connected")
	}
	if len(c.collarIDs) == 0 {
		msg := map[string]string{"type": "subscribe", "collar_id": "*"}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe all: %w", err)
		}
		log.Printf("gateway: subscribed all collars")
		return nil
	}
	for _, id := range c.collarIDs {
		msg := map[string]string{"type": "subscribe", "collar_id": id}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", id, err)
		}
		log.Printf("gateway: subscribed %s", id)
	}
	return nil
}

type gwMessage struct {
	Type string                   `json:"type"`
	Data []models.TelemetryRecord `json:"data"`
}

// Read streams telemetry points and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.TelemetryPoint, <-chan error) {
	points := make(chan *models.TelemetryPoint, 1024)
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
		defer close(points)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("gateway conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("gateway read: %w", err)
					return
				}
				var m gwMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-telemetry frames
					continue
				}
				if m.Type != "telemetry" {
					continue
				}
				for i := range m.Data {
					p, err := m.Data[i].ToPoint()
					if err != nil {
						// malformed reading; skip it, keep the stream
						continue
					}
					pt := p
					select {
					case points <- &pt:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return points, errs
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
