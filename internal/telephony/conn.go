package telephony

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeDeadline = 10 * time.Second

// Conn wraps the media-stream websocket with a write mutex so the relay loop
// and the transfer path can both send without interleaving frames.
type Conn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func NewConn(c *websocket.Conn) *Conn {
	return &Conn{c: c}
}

// ReadEvent blocks for the next inbound message and decodes it.
func (c *Conn) ReadEvent() (Event, error) {
	_, data, err := c.c.ReadMessage()
	if err != nil {
		return nil, err
	}
	return ParseEvent(data)
}

func (c *Conn) writeText(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.c.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.c.WriteMessage(websocket.TextMessage, b)
}

// SendAudio queues one outbound µ-law frame for playback.
func (c *Conn) SendAudio(streamSID, payloadB64 string) error {
	b, err := MediaCommand(streamSID, payloadB64)
	if err != nil {
		return err
	}
	return c.writeText(b)
}

// SendMark sends a playback mark the transport acknowledges once reached.
func (c *Conn) SendMark(streamSID, name string) error {
	b, err := MarkCommand(streamSID, name)
	if err != nil {
		return err
	}
	return c.writeText(b)
}

// Clear discards audio buffered on the transport but not yet played.
func (c *Conn) Clear(streamSID string) error {
	b, err := ClearCommand(streamSID)
	if err != nil {
		return err
	}
	return c.writeText(b)
}

func (c *Conn) Close() error {
	return c.c.Close()
}
