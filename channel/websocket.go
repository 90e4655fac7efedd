package channel

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/weedbox/timebank"

	"github.com/weedbox/pokerclient"
)

var (
	ErrAlreadyConnected = errors.New("channel: already connected")
	ErrNotConnected     = errors.New("channel: not connected")
	ErrClosed           = errors.New("channel: closed")
	ErrSendBufferFull   = errors.New("channel: send buffer full")
)

// Config holds WebSocket connection settings.
type Config struct {
	URL             string
	Header          http.Header
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	SendBufferSize  int
	ReconnectWait   time.Duration
	MaxReconnects   int
	HandshakeWait   time.Duration
}

func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 65536,
		SendBufferSize: 256,
		ReconnectWait:  3 * time.Second,
		MaxReconnects:  10,
		HandshakeWait:  10 * time.Second,
	}
}

/*
WebSocketChannel 是 pokerclient.Channel 的 WebSocket 實作
  - 一條讀 pump、一條寫 pump，事件依 TCP 抵達順序送出，不重排
  - 斷線後由 timebank 排程重連，重連成功會再次觸發 OnConnected
  - 達到重連上限後停止，交由上層決定是否重建 channel
*/
type WebSocketChannel struct {
	mu        sync.Mutex
	config    Config
	logger    zerolog.Logger
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	connected bool
	closed    bool
	attempts  int
	reconnect *timebank.TimeBank

	onEvent        func(event pokerclient.Event)
	onConnected    func()
	onDisconnected func(err error)
}

type Opt func(*WebSocketChannel)

func WithLogger(logger zerolog.Logger) Opt {
	return func(c *WebSocketChannel) {
		c.logger = logger.With().Str("component", "ws_channel").Logger()
	}
}

func NewWebSocketChannel(config Config, opts ...Opt) *WebSocketChannel {
	c := &WebSocketChannel{
		config:         config,
		logger:         zerolog.Nop(),
		reconnect:      timebank.NewTimeBank(),
		onEvent:        func(pokerclient.Event) {},
		onConnected:    func() {},
		onDisconnected: func(error) {},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *WebSocketChannel) OnEvent(fn func(event pokerclient.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

func (c *WebSocketChannel) OnConnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = fn
}

func (c *WebSocketChannel) OnDisconnected(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnected = fn
}

func (c *WebSocketChannel) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	return c.dial()
}

func (c *WebSocketChannel) dial() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeWait,
	}

	conn, _, err := dialer.Dial(c.config.URL, c.config.Header)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", c.config.URL).Msg("dial failed")
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.send = make(chan []byte, c.config.SendBufferSize)
	c.done = make(chan struct{})
	c.connected = true
	c.attempts = 0
	onConnected := c.onConnected
	c.mu.Unlock()

	go c.writePump(conn, c.send, c.done)
	go c.readPump(conn)

	c.logger.Info().Str("url", c.config.URL).Msg("connected")
	onConnected()
	return nil
}

func (c *WebSocketChannel) Send(msg pokerclient.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	send := c.send
	c.mu.Unlock()

	select {
	case send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *WebSocketChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	done := c.done
	c.connected = false
	c.conn = nil
	c.mu.Unlock()

	c.reconnect.Cancel()

	if done != nil {
		close(done)
	}
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.config.WriteTimeout))
		return conn.Close()
	}
	return nil
}

func (c *WebSocketChannel) writePump(conn *websocket.Conn, send chan []byte, done chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			return
		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

func (c *WebSocketChannel) readPump(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(c.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected close")
			}
			c.handleConnectionLost(err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		var event pokerclient.Event
		if err := json.Unmarshal(data, &event); err != nil {
			c.logger.Warn().Err(err).Msg("dropping unparsable frame")
			continue
		}

		c.mu.Lock()
		onEvent := c.onEvent
		c.mu.Unlock()
		onEvent(event)
	}
}

func (c *WebSocketChannel) handleConnectionLost(err error) {
	c.mu.Lock()
	if c.closed || !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.conn = nil
	done := c.done
	c.done = nil
	onDisconnected := c.onDisconnected
	c.mu.Unlock()

	if done != nil {
		close(done)
	}

	onDisconnected(err)
	c.scheduleReconnect()
}

func (c *WebSocketChannel) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.attempts++
	attempts := c.attempts
	c.mu.Unlock()

	if c.config.MaxReconnects > 0 && attempts > c.config.MaxReconnects {
		c.logger.Error().Int("attempts", attempts-1).Msg("reconnect limit reached, giving up")
		return
	}

	c.logger.Info().
		Int("attempt", attempts).
		Dur("wait", c.config.ReconnectWait).
		Msg("scheduling reconnect")

	if err := c.reconnect.NewTask(c.config.ReconnectWait, func(isCancelled bool) {
		if isCancelled {
			return
		}
		if err := c.dial(); err != nil {
			c.scheduleReconnect()
		}
	}); err != nil {
		c.logger.Error().Err(err).Msg("failed to schedule reconnect")
	}
}
