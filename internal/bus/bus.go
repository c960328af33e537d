// Package bus publishes turn events to a websocket message bus. The client
// only writes; nothing is read back from the bus.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

type Bus struct {
	from string

	mu   sync.Mutex
	conn *websocket.Conn
}

type BusMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// Dial connects to the bus at wsURL. Messages are sent as from.
func Dial(ctx context.Context, wsURL, from string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse bus url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("bus url %q: scheme must be ws or wss", wsURL)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus: %w", err)
	}

	log.Info("Connected to bus", "url", wsURL)
	return &Bus{from: from, conn: conn}, nil
}

func (b *Bus) Write(m *BusMessage) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

// Publish broadcasts an event. Failures are logged and otherwise ignored.
func (b *Bus) Publish(kind, content string) {
	err := b.Write(&BusMessage{From: b.from, To: "*", Kind: kind, Content: content})
	if err != nil {
		log.Warn("Bus publish failed", "kind", kind, "err", err)
	}
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return b.conn.Close()
}
