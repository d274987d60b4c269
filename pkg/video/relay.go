package video

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Feeds produces raw frames for each channel.
type Feeds interface {
	SubscribeFrames(ch Channel, fn func(frame []byte)) (unsubscribe func())
}

const (
	writeTimeout  = 5 * time.Second
	clientBacklog = 32
)

// Binding describes the feed the relay currently forwards.
type Binding struct {
	Model   string  `json:"model"`
	Channel Channel `json:"channel"`
	Bound   bool    `json:"bound"`
	Viewers int     `json:"viewers"`
	Frames  uint64  `json:"frames"`
	Dropped uint64  `json:"dropped"`
}

type viewer struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (v *viewer) close() {
	v.once.Do(func() {
		close(v.send)
	})
}

// Relay forwards the selected feed to every connected websocket viewer.
// Slow viewers lose frames rather than stalling the feed.
type Relay struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	model   string
	channel Channel
	unsub   func()
	viewers map[*viewer]struct{}

	frames  atomic.Uint64
	dropped atomic.Uint64
}

// NewRelay creates an unbound relay.
func NewRelay() *Relay {
	return &Relay{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  slog.With("component", "video"),
		viewers: make(map[*viewer]struct{}),
	}
}

// Attach binds the relay to the feed selected for model, dropping any
// previous binding first.
func (r *Relay) Attach(feeds Feeds, model string) Channel {
	ch := SelectFeed(model)

	r.mu.Lock()
	prev := r.unsub
	r.unsub = nil
	r.model = model
	r.channel = ch
	r.mu.Unlock()

	if prev != nil {
		prev()
	}

	unsub := feeds.SubscribeFrames(ch, r.broadcast)

	r.mu.Lock()
	r.unsub = unsub
	r.mu.Unlock()

	r.logger.Info("Video feed attached", "model", model, "channel", ch)
	return ch
}

// Detach stops forwarding frames. Connected viewers stay open.
func (r *Relay) Detach() {
	r.mu.Lock()
	prev := r.unsub
	r.unsub = nil
	r.mu.Unlock()
	if prev != nil {
		prev()
		r.logger.Info("Video feed detached")
	}
}

// Binding returns the current feed binding.
func (r *Relay) Binding() Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Binding{
		Model:   r.model,
		Channel: r.channel,
		Bound:   r.unsub != nil,
		Viewers: len(r.viewers),
		Frames:  r.frames.Load(),
		Dropped: r.dropped.Load(),
	}
}

// Close disconnects every viewer and detaches the feed.
func (r *Relay) Close() {
	r.Detach()
	r.mu.Lock()
	vs := r.viewers
	r.viewers = make(map[*viewer]struct{})
	r.mu.Unlock()
	for v := range vs {
		v.close()
	}
}

func (r *Relay) broadcast(frame []byte) {
	r.frames.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()
	for v := range r.viewers {
		select {
		case v.send <- frame:
		default:
			r.dropped.Add(1)
		}
	}
}

// ServeHTTP upgrades the request to a websocket and streams binary frames
// until the viewer disconnects.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("Video upgrade failed", "error", err)
		return
	}

	v := &viewer{conn: conn, send: make(chan []byte, clientBacklog)}
	r.mu.Lock()
	r.viewers[v] = struct{}{}
	r.mu.Unlock()
	r.logger.Debug("Video viewer connected", "remote", req.RemoteAddr)

	go r.readLoop(v)
	r.writeLoop(v)
}

func (r *Relay) remove(v *viewer) {
	r.mu.Lock()
	delete(r.viewers, v)
	r.mu.Unlock()
	v.close()
}

// readLoop drains control frames and notices when the viewer goes away.
func (r *Relay) readLoop(v *viewer) {
	defer r.remove(v)
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (r *Relay) writeLoop(v *viewer) {
	defer func() {
		r.remove(v)
		_ = v.conn.Close()
	}()
	for frame := range v.send {
		_ = v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := v.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			r.logger.Debug("Video viewer write failed", "error", err)
			return
		}
	}
	_ = v.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
