package aibackend

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/voicedesk/internal/utils"
)

const (
	dialTimeout   = 15 * time.Second
	writeDeadline = 10 * time.Second

	// configSettleDelay sits between channel open and the session-update
	// message; the backend drops configuration sent too early.
	configSettleDelay = 250 * time.Millisecond
)

// Client is one realtime backend channel. A reader goroutine decodes inbound
// messages onto Events(); writes are mutex-serialized.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
	log  *logrus.Entry

	events chan Event
	done   chan struct{}
}

// Dial opens the backend channel, waits the settle delay, and sends the
// session configuration.
func Dial(ctx context.Context, url, apiKey string, cfg SessionConfig, log *logrus.Entry) (*Client, error) {
	const op = "aibackend.Dial"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "backend dial failed", err)
	}

	c := &Client{
		conn:   conn,
		log:    log,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()

	select {
	case <-ctx.Done():
		c.Close()
		return nil, utils.E(utils.CodeTimeout, op, "context done before session configuration", ctx.Err())
	case <-time.After(configSettleDelay):
	}

	if err := c.Configure(cfg); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Events yields decoded backend events until the channel closes.
func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.log.WithError(err).Debug("backend channel closed")
			}
			return
		}
		ev, err := ParseEvent(data)
		if err != nil {
			// Malformed single message: log and drop, keep the channel.
			c.log.WithError(err).Warn("dropping malformed backend message")
			continue
		}
		c.events <- ev
	}
}

func (c *Client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Configure sends the once-per-session configuration.
func (c *Client) Configure(cfg SessionConfig) error {
	const op = "Client.Configure"
	b, err := SessionUpdateCommand(cfg)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "encoding session configuration", err)
	}
	if err := c.write(b); err != nil {
		return utils.E(utils.CodeUnavailable, op, "sending session configuration", err)
	}
	return nil
}

// AppendAudio forwards one base64 µ-law caller frame.
func (c *Client) AppendAudio(payloadB64 string) error {
	b, err := AudioAppendCommand(payloadB64)
	if err != nil {
		return err
	}
	return c.write(b)
}

// TruncateItem cuts off the named in-flight assistant turn.
func (c *Client) TruncateItem(itemID string, contentIndex int, audioEndMS int64) error {
	b, err := TruncateCommand(itemID, contentIndex, audioEndMS)
	if err != nil {
		return err
	}
	return c.write(b)
}

// CreateResponse asks for the next assistant turn.
func (c *Client) CreateResponse() error {
	b, err := ResponseCreateCommand()
	if err != nil {
		return err
	}
	return c.write(b)
}

func (c *Client) Close() error {
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}
	return c.conn.Close()
}
