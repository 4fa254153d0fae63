package push

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/domain"
)

// Event names sent by the relay stream.
const (
	EventConnected = "connected"
	EventWebhook   = "webhook"
	EventHistory   = "history"
)

// Handler receives every decoded webhook event.
type Handler func(ctx context.Context, event domain.WebhookEvent)

// Channel keeps one server-sent event connection to the relay open,
// reconnecting after a fixed backoff whenever it drops.
type Channel struct {
	url     string
	backoff time.Duration
	handler Handler
	http    *resty.Client
	logger  *zap.Logger
}

// NewChannel builds a channel.
func NewChannel(url string, backoff time.Duration, handler Handler, logger *zap.Logger) *Channel {
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &Channel{
		url:     url,
		backoff: backoff,
		handler: handler,
		http: resty.New().
			SetHeader("Accept", "text/event-stream").
			SetHeader("Cache-Control", "no-cache"),
		logger: logger,
	}
}

// Run connects until ctx is cancelled. Reconnection is unbounded.
func (c *Channel) Run(ctx context.Context) {
	for {
		err := c.connect(ctx)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("event stream disconnected, reconnecting",
			zap.String("url", c.url),
			zap.Duration("backoff", c.backoff),
			zap.Error(err))

		timer := time.NewTimer(c.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Channel) connect(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(c.url)
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.StatusCode() != 200 {
		return fmt.Errorf("event stream responded %d", resp.StatusCode())
	}
	if err := c.consume(ctx, body); err != nil {
		return err
	}
	return io.EOF
}

// consume reads frames until the stream ends.
func (c *Channel) consume(ctx context.Context, r io.Reader) error {
	return ReadFrames(r, func(f Frame) {
		c.dispatch(ctx, f)
	})
}

func (c *Channel) dispatch(ctx context.Context, f Frame) {
	switch f.Event {
	case EventConnected:
		c.logger.Info("event stream connected", zap.String("url", c.url), zap.String("data", f.Data))
	case EventWebhook:
		var event domain.WebhookEvent
		if err := json.Unmarshal([]byte(f.Data), &event); err != nil {
			c.logger.Warn("webhook event undecodable", zap.Error(err))
			return
		}
		if c.handler != nil {
			c.handler(ctx, event)
		}
	case EventHistory:
		// Replayed events were already handled or are stale.
	default:
		c.logger.Debug("unknown stream event", zap.String("event", f.Event))
	}
}

// Frame is one server-sent event.
type Frame struct {
	ID    string
	Event string
	Data  string
}

// ReadFrames parses an event stream, calling fn for every complete frame.
// Comment lines are skipped and multi-line data is joined with "\n".
func ReadFrames(r io.Reader, fn func(Frame)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		frame   Frame
		data    []string
		pending bool
	)
	flush := func() {
		if pending {
			frame.Data = strings.Join(data, "\n")
			if frame.Event == "" {
				frame.Event = "message"
			}
			fn(frame)
		}
		frame, data, pending = Frame{}, nil, false
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			frame.Event = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		case "id":
			frame.ID = value
			pending = true
		}
	}
	flush()
	return scanner.Err()
}

// WriteFrame renders a frame in the event stream format.
func WriteFrame(w io.Writer, f Frame) error {
	var b strings.Builder
	if f.ID != "" {
		b.WriteString("id: " + f.ID + "\n")
	}
	if f.Event != "" {
		b.WriteString("event: " + f.Event + "\n")
	}
	for _, line := range strings.Split(f.Data, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
