package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"TradeCouncil/internal/domain/models"
	drepo "TradeCouncil/internal/domain/repository"
	"TradeCouncil/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	defaultStreamURL      = "wss://stream.binance.com:9443/ws"
	defaultReconnectDelay = 5 * time.Second
	defaultPingInterval   = 30 * time.Second
)

// Stream is a live trade feed over a Binance-style WebSocket. Assets
// are subscribed as <symbol>@trade streams after connecting.
type Stream struct {
	wsURL          string
	assets         []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	subID     int
}

var _ drepo.TickStream = (*Stream)(nil)

// NewStream builds a tick stream for the given assets.
func NewStream(wsURL string, assets []string, reconnectDelay, pingInterval time.Duration, lgr *logger.Logger) *Stream {
	if wsURL == "" {
		wsURL = defaultStreamURL
	}
	if reconnectDelay <= 0 {
		reconnectDelay = defaultReconnectDelay
	}
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &Stream{
		wsURL:          wsURL,
		assets:         assets,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            lgr,
	}
}

// Connect dials the WebSocket endpoint.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	s.log.Info("tick stream connected", logger.String("url", s.wsURL))
	return nil
}

// Subscribe requests trade events for the configured assets.
func (s *Stream) Subscribe(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || !s.connected {
		return fmt.Errorf("stream not connected")
	}
	if len(s.assets) == 0 {
		return nil
	}

	params := make([]string, 0, len(s.assets))
	for _, a := range s.assets {
		params = append(params, strings.ToLower(a)+"@trade")
	}

	s.subID++
	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     s.subID,
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.log.Info("tick stream subscribed", logger.Strings("streams", params))
	return nil
}

// wsTrade is one trade event frame. Price and quantity arrive as
// strings; T is the trade time in milliseconds.
type wsTrade struct {
	Event  string `json:"e"`
	Symbol string `json:"s"`
	Price  string `json:"p"`
	Qty    string `json:"q"`
	TimeMs int64  `json:"T"`
}

// Read streams ticks and errors. Both channels close when the read
// loop exits; the caller decides whether to Reconnect.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)

	go s.pingLoop(ctx)

	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			conn := s.current()
			if conn == nil {
				errs <- fmt.Errorf("stream connection closed")
				return
			}

			_, b, err := conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("stream read: %w", err)
				return
			}

			tick, ok := parseTick(b)
			if !ok {
				// subscription acks and control frames
				continue
			}

			select {
			case ticks <- tick:
			default:
				// drop on backpressure
			}
		}
	}()

	return ticks, errs
}

func (s *Stream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if conn := s.current(); conn != nil {
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

// Reconnect tears the connection down, waits the configured delay and
// dials again, resubscribing on success.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}

	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close shuts the connection down.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = false
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// IsConnected reports the connection state.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Stream) current() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// parseTick converts a trade frame into a Tick. Non-trade frames and
// unparseable prices return false.
func parseTick(b []byte) (*models.Tick, bool) {
	var ev wsTrade
	if err := json.Unmarshal(b, &ev); err != nil {
		return nil, false
	}
	if ev.Event != "trade" || ev.Symbol == "" {
		return nil, false
	}

	price, err := strconv.ParseFloat(ev.Price, 64)
	if err != nil || price <= 0 {
		return nil, false
	}
	volume, _ := strconv.ParseFloat(ev.Qty, 64)

	return &models.Tick{
		Asset:     ev.Symbol,
		Price:     price,
		Volume:    volume,
		Timestamp: ev.TimeMs / 1000,
	}, true
}
