package vehicle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// PhotoAspectRatio is applied to the camera on every connection.
const PhotoAspectRatio = AspectRatio16x9

// Session registers with the SDK, connects to the product and prepares the
// camera. Hooks registered with OnConnect run after each successful connect.
type Session struct {
	link   Link
	appKey string
	logger *slog.Logger

	mu        sync.RWMutex
	product   *Product
	onConnect []func(Product)
}

// NewSession creates a session for link using appKey.
func NewSession(link Link, appKey string) *Session {
	return &Session{
		link:   link,
		appKey: appKey,
		logger: slog.With("component", "vehicle"),
	}
}

// OnConnect registers fn to run when a product connects.
func (s *Session) OnConnect(fn func(Product)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = append(s.onConnect, fn)
}

// Start registers and connects. A failed aspect ratio change is logged and
// does not fail the session.
func (s *Session) Start(ctx context.Context) (Product, error) {
	if s.appKey == "" {
		return Product{}, ErrNoAppKey
	}
	if err := s.link.Register(ctx, s.appKey); err != nil {
		return Product{}, fmt.Errorf("register SDK: %w", err)
	}
	s.logger.Info("SDK registered")

	p, err := s.link.Connect(ctx)
	if err != nil {
		return Product{}, fmt.Errorf("connect product: %w", err)
	}
	s.logger.Info("Product connected", "model", p.Model, "serial", p.Serial)

	if err := s.link.SetPhotoAspectRatio(ctx, PhotoAspectRatio); err != nil {
		s.logger.Warn("Failed to set photo aspect ratio", "ratio", PhotoAspectRatio, "error", err)
	}

	s.mu.Lock()
	s.product = &p
	hooks := append([]func(Product){}, s.onConnect...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(p)
	}
	return p, nil
}

// Product returns the connected product, if any.
func (s *Session) Product() (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.product == nil {
		return Product{}, false
	}
	return *s.product, true
}

// CheckConnected reports ErrNotConnected unless the link is connected.
func (s *Session) CheckConnected(_ context.Context) error {
	if s.link.State() != StateConnected {
		return ErrNotConnected
	}
	return nil
}

// CheckAppKey reports ErrNoAppKey when no key is configured.
func (s *Session) CheckAppKey(_ context.Context) error {
	if s.appKey == "" {
		return ErrNoAppKey
	}
	return nil
}
