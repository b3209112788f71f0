package syncclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"notesync/internal/logging"
	"notesync/internal/websocket"
)

// Notifier holds a websocket open to the server and calls onChange whenever
// another device changed this user's notes. A successful (re)connect also
// calls onChange, since changes may have been missed while disconnected.
type Notifier struct {
	url        string
	token      string
	onChange   func()
	dialer     *ws.Dialer
	logger     logging.Logger
	baseDelay  time.Duration
	maxBackoff time.Duration
}

type NotifierOption func(*Notifier)

func WithNotifierLogger(l logging.Logger) NotifierOption {
	return func(n *Notifier) { n.logger = l }
}

// WithReconnectBackoff sets the reconnect delays. Non-positive values keep
// the defaults.
func WithReconnectBackoff(base, max time.Duration) NotifierOption {
	return func(n *Notifier) {
		if base > 0 {
			n.baseDelay = base
		}
		if max > 0 {
			n.maxBackoff = max
		}
	}
}

func NewNotifier(serverURL, token string, onChange func(), opts ...NotifierOption) (*Notifier, error) {
	wsURL, err := websocketURL(serverURL)
	if err != nil {
		return nil, err
	}
	n := &Notifier{
		url:        wsURL,
		token:      token,
		onChange:   onChange,
		dialer:     &ws.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:     logging.NewNop(),
		baseDelay:  DefaultBackoffBase,
		maxBackoff: DefaultBackoffMax,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Run keeps the connection alive until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	backoff := n.newBackoff()
	for {
		err := n.listen(ctx)
		if ctx.Err() != nil {
			return
		}

		if err == nil {
			backoff = n.newBackoff()
		}
		wait, _ := backoff.Next()
		n.logger.Debug(ctx, "notification stream closed", "error", err, "retry_in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// listen serves one connection. It returns nil if the connection was
// established and later dropped, or the dial error otherwise.
func (n *Notifier) listen(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+n.token)

	conn, _, err := n.dialer.DialContext(ctx, n.url, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	n.logger.Debug(ctx, "notification stream connected")
	n.onChange()

	for {
		var msg websocket.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return nil
		}
		if msg.Type == websocket.TypeNotesChanged {
			n.onChange()
		}
	}
}

func (n *Notifier) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(n.maxBackoff, retry.NewExponential(n.baseDelay))
}
