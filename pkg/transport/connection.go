package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

var ErrSlowConsumer = errors.New("send buffer full")

// callback executed when a message is received.
type MessageHandler func(ctx context.Context, connID uuid.UUID, msg []byte)

type OnCloseHandler func(connID uuid.UUID, err error)

type ConnectionConfig struct {
	// interval between keepalive pings. Zero disables keepalive.
	PingInterval   time.Duration
	// how long a ping may wait for its pong before the connection is dropped.
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBufferSize int
	MaxMessageSize int64
}

// Connection represents a single, thread-safe WebSocket connection.
type Connection struct {
	id     uuid.UUID
	conn   *websocket.Conn
	config ConnectionConfig
	send   chan []byte

	onMessage MessageHandler
	onClose   OnCloseHandler

	done      chan struct{}
	wg        *sync.WaitGroup
	ctx       context.Context
	closeOnce sync.Once
	cancel    context.CancelFunc

	logger *slog.Logger
}

func NewConnection(parentCtx context.Context, wg *sync.WaitGroup, conn *websocket.Conn, config ConnectionConfig, onMessage MessageHandler, onClose OnCloseHandler, logger *slog.Logger) *Connection {
	id := uuid.New()
	connCtx, cancel := context.WithCancel(parentCtx)
	connLogger := logger.With(slog.String("connID", id.String()))
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	// released by Close, which every connection reaches exactly once.
	wg.Add(1)

	return &Connection{
		id:        id,
		conn:      conn,
		logger:    connLogger,
		config:    config,
		onMessage: onMessage,
		send:      make(chan []byte, config.SendBufferSize),
		done:      make(chan struct{}),
		ctx:       connCtx,
		cancel:    cancel,
		onClose:   onClose,
		wg:        wg,
	}
}

func (c *Connection) Run() {
	if c.config.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.config.MaxMessageSize)
	}
	go c.readPump()
	go c.writePump()
	if c.config.PingInterval > 0 {
		go c.pingPump()
	}

	c.logger.Info("connection established")
}

// readPump pumps messages from the WebSocket connection to the message handler.
// Messages are handled one at a time, so events from a single connection are processed in order.
// Reads carry no deadline; liveness is checked by pingPump. The pump must keep
// reading for pongs to be delivered.
func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	for {
		message, err := c.read()
		if err != nil {
			readErr = err
			return
		}
		if message == nil {
			continue
		}
		if c.onMessage != nil {
			c.onMessage(c.ctx, c.id, message)
		}
	}
}

// read returns the next text or binary message, or nil for frames the relay ignores.
func (c *Connection) read() ([]byte, error) {
	typ, r, err := c.conn.Reader(c.ctx)
	if err != nil {
		return nil, err
	}
	// Ensure we are only handling text or binary messages.
	if typ != websocket.MessageText && typ != websocket.MessageBinary {
		return nil, nil
	}
	message, err := io.ReadAll(r)
	if err != nil {
		c.logger.Error("Connection readpump failed to read message", slog.Any("error", err))
		return nil, err
	}
	return message, nil
}

// writePump pumps messages from the send channel to the WebSocket connection.
func (c *Connection) writePump() {
	var writeErr error

	defer func() {
		c.Close(writeErr)
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(message); err != nil {
				writeErr = err
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// pingPump closes the connection once a ping goes unanswered. A quiet client
// that still answers pings stays connected indefinitely.
func (c *Connection) pingPump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.ping(); err != nil {
				c.logger.Warn("Keepalive ping failed", slog.Any("error", err))
				c.Close(fmt.Errorf("keepalive: %w", err))
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) ping() error {
	pingCtx := c.ctx
	if c.config.PongTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(c.ctx, c.config.PongTimeout)
		defer cancel()
	}
	return c.conn.Ping(pingCtx)
}

func (c *Connection) write(message []byte) error {
	writeCtx := c.ctx
	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(c.ctx, c.config.WriteTimeout)
		defer cancel()
	}
	return c.conn.Write(writeCtx, websocket.MessageText, message)
}

// Send queues a message for the client without blocking. It is safe for
// concurrent use. A client whose buffer is full is disconnected as a slow consumer.
func (c *Connection) Send(message []byte) bool {
	select {
	case <-c.ctx.Done():
		c.logger.Debug("Attempted to send on a closed connection")
		return false
	default:
	}

	select {
	case c.send <- message:
		return true
	default:
		c.logger.Warn("Send buffer full, closing slow consumer")
		go c.Close(ErrSlowConsumer)
		return false
	}
}

// gracefully shuts down the connection and its resources.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		status := websocket.CloseStatus(err)
		c.logger.Info("Transport connection closing", slog.Any("reason", err), slog.String("status", status.String()))

		c.cancel() // Signal goroutines to stop. Closed reports true from here on.
		if c.onClose != nil {
			c.onClose(c.id, err)
		}
		if c.conn != nil {
			code, reason := websocket.StatusNormalClosure, ""
			if errors.Is(err, ErrSlowConsumer) {
				code, reason = websocket.StatusPolicyViolation, err.Error()
			}
			c.conn.Close(code, reason)
		}
		c.logger.Info("Connection closed")
		c.wg.Done()
		close(c.done)
	})
}

// returns a channel that is closed when the connection is fully terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether Close has started. A caller that observes false
// is guaranteed the close handler has not run yet.
func (c *Connection) Closed() bool {
	return c.ctx.Err() != nil
}

// ID returns the unique identifier of the connection.
func (c *Connection) ID() uuid.UUID {
	return c.id
}
