package marketfeed

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"agent-arena/internal/domain"
)

// WSFeedConfig configures the websocket feed client.
type WSFeedConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the reconnect backoff.
	MaxReconnectDelay time.Duration
	// ReadTimeout bounds one message read.
	ReadTimeout time.Duration
	// MaxAge is how old a cached snapshot may be before Get reports absence.
	MaxAge time.Duration
}

// DefaultWSFeedConfig returns default websocket feed configuration.
func DefaultWSFeedConfig() WSFeedConfig {
	return WSFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       90 * time.Second,
		MaxAge:            5 * time.Minute,
	}
}

// snapshotMessage is one feed wire message.
type snapshotMessage struct {
	Token     string  `json:"token"`
	Price     float64 `json:"price"`
	Volume1h  float64 `json:"volume1h"`
	Events1h  int     `json:"events1h"`
	Liquidity float64 `json:"liquidity"`
	Timestamp int64   `json:"ts"`
}

// WSFeed caches the latest snapshot per token from a websocket stream.
type WSFeed struct {
	endpoint string
	config   WSFeedConfig
	logger   *log.Logger

	mu     sync.RWMutex
	latest map[string]*domain.MarketSnapshot

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSFeed creates a feed client and starts its stream loop.
func NewWSFeed(ctx context.Context, endpoint string, config *WSFeedConfig, logger *log.Logger) *WSFeed {
	cfg := DefaultWSFeedConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	f := &WSFeed{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		latest:   make(map[string]*domain.MarketSnapshot),
		done:     make(chan struct{}),
	}

	f.wg.Add(1)
	go f.streamLoop(ctx)
	return f
}

// Close stops the stream loop.
func (f *WSFeed) Close() {
	close(f.done)
	f.wg.Wait()
}

// Get returns the latest fresh snapshot for a token, or ErrNoSnapshot.
func (f *WSFeed) Get(_ context.Context, tokenAddress string) (*domain.MarketSnapshot, error) {
	f.mu.RLock()
	snap, ok := f.latest[strings.ToLower(tokenAddress)]
	f.mu.RUnlock()

	if !ok {
		return nil, ErrNoSnapshot
	}
	if age := time.Since(time.UnixMilli(snap.TimestampMs)); age > f.config.MaxAge {
		return nil, ErrNoSnapshot
	}
	out := *snap
	return &out, nil
}

// streamLoop maintains the websocket connection with exponential backoff.
func (f *WSFeed) streamLoop(ctx context.Context) {
	defer f.wg.Done()

	delay := f.config.ReconnectDelay
	for {
		select {
		case <-f.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		healthy, err := f.streamOnce(ctx)
		delay = f.nextDelay(delay, healthy)
		if err != nil {
			f.logger.Printf("[marketfeed] stream error: %v, reconnecting in %v", err, delay)
		}

		select {
		case <-f.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// nextDelay advances the reconnect backoff. A session that delivered at least
// one snapshot resets the backoff so a single flap after hours of streaming
// does not wait the escalated delay.
func (f *WSFeed) nextDelay(current time.Duration, healthy bool) time.Duration {
	if healthy {
		return f.config.ReconnectDelay
	}
	current *= 2
	if current > f.config.MaxReconnectDelay {
		current = f.config.MaxReconnectDelay
	}
	return current
}

// streamOnce connects and consumes messages until the connection drops.
// Reports whether the session delivered at least one usable snapshot.
func (f *WSFeed) streamOnce(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	f.logger.Printf("[marketfeed] connected to %s", f.endpoint)

	healthy := false
	for {
		select {
		case <-f.done:
			return healthy, nil
		case <-ctx.Done():
			return healthy, nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return healthy, err
		}

		var msg snapshotMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.logger.Printf("[marketfeed] malformed message: %v", err)
			continue
		}
		if msg.Token == "" || msg.Price <= 0 {
			continue
		}

		token := strings.ToLower(msg.Token)
		f.mu.Lock()
		f.latest[token] = &domain.MarketSnapshot{
			TokenAddress: token,
			Price:        msg.Price,
			Volume1h:     msg.Volume1h,
			Events1h:     msg.Events1h,
			Liquidity:    msg.Liquidity,
			TimestampMs:  msg.Timestamp,
		}
		f.mu.Unlock()
		healthy = true
	}
}

var _ Feed = (*WSFeed)(nil)
