package bridge

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/normanking/avatarloop/internal/avatar3d"
	"github.com/normanking/avatarloop/internal/bus"
	"github.com/normanking/avatarloop/internal/frame"
	"github.com/normanking/avatarloop/internal/metrics"
	"github.com/normanking/avatarloop/internal/tier"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
)

// DefaultLoadingText is the host status shown while the avatar loads.
const DefaultLoadingText = "Loading Avatar…"

// Poster receives loop events.
type Poster interface {
	Post(frame.Event)
}

// PCMSink receives raw little-endian PCM from clients.
type PCMSink interface {
	PushPCM(data []byte, bitDepth int)
}

// Options configures a Hub.
type Options struct {
	Bundle         tier.Bundle
	SendBuffer     int
	PCMBitDepth    int
	LoadingText    string
	AllowedOrigins []string // empty allows any origin

	OnSay   func(text string)
	Audio   PCMSink
	Bus     *bus.EventBus
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// Hub fans frames out to renderer clients and forwards their input to the
// loop. It implements avatar3d.Sink and avatar3d.BoneReporter.
type Hub struct {
	opts     Options
	poster   Poster
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	clients   map[string]*client
	bones     map[string]bool
	render    RenderSettings
	chrome    *Chrome
	chromeSeq uint64
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates a hub posting client input to poster.
func NewHub(poster Poster, opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 8
	}
	if opts.PCMBitDepth == 0 {
		opts.PCMBitDepth = 16
	}
	if opts.LoadingText == "" {
		opts.LoadingText = DefaultLoadingText
	}

	h := &Hub{
		opts:    opts,
		poster:  poster,
		logger:  opts.Logger.With().Str("component", "bridge").Logger(),
		clients: make(map[string]*client),
		render:  renderSettings(opts.Bundle),
		chrome:  &Chrome{Action: "status", Text: opts.LoadingText},
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}

	if opts.Bus != nil {
		opts.Bus.Subscribe(bus.EventTypeLifecycleChanged, h.onLifecycle)
		opts.Bus.Subscribe(bus.EventTypeTierChanged, h.onTier)
	}
	return h
}

// Attach sets the loop that receives client input. Call before serving.
func (h *Hub) Attach(p Poster) { h.poster = p }

// SetOnSay sets the handler for client say requests. Call before serving.
func (h *Hub) SetOnSay(fn func(text string)) { h.opts.OnSay = fn }

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range h.opts.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.opts.SendBuffer),
		done: make(chan struct{}),
	}
	h.register(c)
	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	render := h.render
	chrome := h.chrome
	h.mu.Unlock()

	h.logger.Info().Str("client", c.id).Int("clients", n).Msg("Renderer connected")
	if h.opts.Metrics != nil {
		h.opts.Metrics.BridgeClients.Set(float64(n))
	}
	h.publish(bus.EventTypeClientConnected, map[string]any{"client_id": c.id})

	h.enqueue(c, Outbound{Type: MsgWelcome, ClientID: c.id, Render: &render})
	if chrome != nil {
		h.enqueue(c, Outbound{Type: MsgChrome, Chrome: chrome})
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	h.logger.Info().Str("client", c.id).Int("clients", n).Msg("Renderer disconnected")
	if h.opts.Metrics != nil {
		h.opts.Metrics.BridgeClients.Set(float64(n))
	}
	h.publish(bus.EventTypeClientDisconnected, map[string]any{"client_id": c.id})

	// nobody is looking at the avatar any more
	if n == 0 && h.poster != nil {
		h.poster.Post(frame.Event{Kind: frame.EventVisibility, On: false})
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("client", c.id).Msg("Renderer read failed")
			}
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			if h.opts.Audio != nil {
				h.opts.Audio.PushPCM(data, h.opts.PCMBitDepth)
			}
		case websocket.TextMessage:
			h.handle(c, data)
		}
	}
}

func (h *Hub) handle(c *client, data []byte) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Warn().Err(err).Str("client", c.id).Msg("Failed to parse client message")
		return
	}

	events, err := msg.Events()
	if err != nil {
		h.logger.Debug().Err(err).Str("client", c.id).Msg("Ignoring client message")
		return
	}

	switch msg.Type {
	case MsgHello:
		h.setBones(msg.Bones)
	case MsgSay:
		if msg.Text != "" && h.opts.OnSay != nil {
			h.opts.OnSay(msg.Text)
		}
	}

	if h.poster == nil {
		return
	}
	for _, e := range events {
		h.poster.Post(e)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// Submit broadcasts a frame. Clients that are behind miss it.
func (h *Hub) Submit(fr avatar3d.Frame) {
	data, err := encode(Outbound{Type: MsgFrame, Frame: &fr})
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to encode frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			if h.opts.Metrics != nil {
				h.opts.Metrics.BridgeDropped.Inc()
			}
		}
	}
}

// HasBone reports whether the last hello listed name. Before any client
// reports its bones every bone is assumed present.
func (h *Hub) HasBone(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.bones == nil {
		return true
	}
	return h.bones[name]
}

func (h *Hub) setBones(names []string) {
	if len(names) == 0 {
		return
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	h.mu.Lock()
	h.bones = set
	h.mu.Unlock()
}

// Clients returns the number of connected renderers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.close()
	}
}

// broadcast sends a control message to every client. Control messages are
// rare, so a full client buffer waits briefly instead of dropping.
func (h *Hub) broadcast(m Outbound) {
	data, err := encode(m)
	if err != nil {
		h.logger.Warn().Err(err).Str("type", m.Type).Msg("Failed to encode message")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		case <-c.done:
		case <-time.After(writeWait):
			h.logger.Warn().Str("client", c.id).Str("type", m.Type).Msg("Dropped control message")
		}
	}
}

func (h *Hub) enqueue(c *client, m Outbound) {
	data, err := encode(m)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		h.logger.Warn().Str("client", c.id).Str("type", m.Type).Msg("Client buffer full")
	}
}

func (h *Hub) publish(t bus.EventType, data map[string]any) {
	if h.opts.Bus != nil {
		h.opts.Bus.Publish(bus.Event{Type: t, Data: data})
	}
}
