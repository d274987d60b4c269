package video

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectFeed(t *testing.T) {
	tests := []struct {
		model string
		want  Channel
	}{
		{"A3", ChannelSecondary},
		{"N3", ChannelSecondary},
		{"Matrice600", ChannelSecondary},
		{"Matrice600Pro", ChannelSecondary},
		{"UnknownModel", ChannelPrimary},
		{"Mavic2", ChannelPrimary},
		{"", ChannelPrimary},
		{"matrice600", ChannelPrimary},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := SelectFeed(tt.model); got != tt.want {
				t.Errorf("SelectFeed(%q) = %s, want %s", tt.model, got, tt.want)
			}
		})
	}
}

func TestChannelJSON(t *testing.T) {
	b, err := json.Marshal(Binding{Model: "N3", Channel: ChannelSecondary})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"channel":"secondary"`)
}

type fakeFeeds struct {
	mu   sync.Mutex
	subs map[Channel]func([]byte)
	log  []string
}

func (f *fakeFeeds) SubscribeFrames(ch Channel, fn func([]byte)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[Channel]func([]byte))
	}
	f.subs[ch] = fn
	f.log = append(f.log, "sub:"+ch.String())
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, ch)
		f.log = append(f.log, "unsub:"+ch.String())
	}
}

func (f *fakeFeeds) push(ch Channel, frame []byte) bool {
	f.mu.Lock()
	fn := f.subs[ch]
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(frame)
	return true
}

func TestRelay_AttachResetsPreviousBinding(t *testing.T) {
	feeds := &fakeFeeds{}
	r := NewRelay()

	assert.Equal(t, ChannelPrimary, r.Attach(feeds, "Mavic2"))
	assert.Equal(t, ChannelSecondary, r.Attach(feeds, "Matrice600"))
	assert.Equal(t, []string{"sub:primary", "unsub:primary", "sub:secondary"}, feeds.log)

	b := r.Binding()
	assert.True(t, b.Bound)
	assert.Equal(t, "Matrice600", b.Model)
	assert.Equal(t, ChannelSecondary, b.Channel)

	r.Detach()
	assert.False(t, r.Binding().Bound)
	assert.False(t, feeds.push(ChannelSecondary, []byte{1}))
}

func TestRelay_StreamsFramesToViewer(t *testing.T) {
	feeds := &fakeFeeds{}
	r := NewRelay()
	defer r.Close()
	r.Attach(feeds, "N3")

	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return r.Binding().Viewers == 1 }, time.Second, 5*time.Millisecond)

	// Frames on the unselected feed are not relayed.
	assert.False(t, feeds.push(ChannelPrimary, []byte("primary")))
	require.True(t, feeds.push(ChannelSecondary, []byte("frame-1")))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, []byte("frame-1"), data)
	assert.Equal(t, uint64(1), r.Binding().Frames)

	conn.Close()
	require.Eventually(t, func() bool { return r.Binding().Viewers == 0 }, time.Second, 5*time.Millisecond)
}

func TestRelay_DropsForSlowViewer(t *testing.T) {
	r := NewRelay()
	v := &viewer{send: make(chan []byte, 1)}
	r.viewers[v] = struct{}{}

	r.broadcast([]byte{1})
	r.broadcast([]byte{2})
	r.broadcast([]byte{3})

	b := r.Binding()
	assert.Equal(t, uint64(3), b.Frames)
	assert.Equal(t, uint64(2), b.Dropped)
	assert.Equal(t, []byte{1}, <-v.send)
}
