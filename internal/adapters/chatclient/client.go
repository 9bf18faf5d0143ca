// Package chatclient keeps a local support-chat timeline in sync with the API by
// polling for new rows and consuming the realtime event stream at the same time.
package chatclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skyporter/luggage-api/internal/app/chat"
	"github.com/skyporter/luggage-api/internal/domain"
	"github.com/skyporter/luggage-api/internal/ports/out/events"
)

const (
	DefaultPollInterval = 5 * time.Second
	maxStreamBackoff    = 30 * time.Second
)

type Config struct {
	BaseURL string
	// Token is sent as a bearer token on every request.
	Token string
	// ConversationID is required for admins; other roles may leave it empty.
	ConversationID domain.ConversationID
	PollInterval   time.Duration
	HTTPClient     *http.Client
}

type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger

	mu       sync.Mutex
	timeline *chat.Timeline

	updates chan struct{}
}

func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		cfg:      cfg,
		http:     hc,
		log:      log,
		timeline: chat.NewTimeline(),
		updates:  make(chan struct{}, 1),
	}
}

// Updates signals after the timeline changes. Signals coalesce.
func (c *Client) Updates() <-chan struct{} { return c.updates }

// Messages returns a snapshot of the timeline.
func (c *Client) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeline.Messages()
}

// Run polls and streams until ctx is cancelled, then returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.pollLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.streamLoop(ctx)
	}()
	wg.Wait()
	return ctx.Err()
}

func (c *Client) pollLoop(ctx context.Context) {
	t := time.NewTicker(c.cfg.PollInterval)
	defer t.Stop()
	for {
		if _, err := c.PollOnce(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn().Err(err).Msg("chat poll failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// PollOnce fetches rows newer than the last confirmed message and merges them.
func (c *Client) PollOnce(ctx context.Context) (int, error) {
	c.mu.Lock()
	since := c.timeline.LastSeen()
	c.mu.Unlock()

	params := map[string]any{}
	if c.cfg.ConversationID != "" {
		params["conversationId"] = c.cfg.ConversationID
	}
	if !since.IsZero() {
		params["since"] = since.Format(time.RFC3339Nano)
	}
	var rows []domain.Message
	if err := c.action(ctx, "getMessages", params, &rows); err != nil {
		return 0, err
	}
	return c.merge(rows...), nil
}

// Send shows body immediately as a placeholder, then swaps it for the server row.
// On failure the placeholder is removed.
func (c *Client) Send(ctx context.Context, body string) (domain.Message, error) {
	ref := uuid.NewString()
	c.mu.Lock()
	c.timeline.AddPending(domain.Message{
		ConversationID: c.cfg.ConversationID,
		Body:           body,
		ClientRef:      &ref,
		CreatedAt:      time.Now().UTC(),
	})
	c.mu.Unlock()
	c.notify()

	params := map[string]any{"body": body, "clientRef": ref}
	if c.cfg.ConversationID != "" {
		params["conversationId"] = c.cfg.ConversationID
	}
	var m domain.Message
	if err := c.action(ctx, "sendMessage", params, &m); err != nil {
		c.mu.Lock()
		c.timeline.Fail(ref)
		c.mu.Unlock()
		c.notify()
		return domain.Message{}, err
	}
	c.merge(m)
	return m, nil
}

func (c *Client) merge(rows ...domain.Message) int {
	c.mu.Lock()
	n := c.timeline.Merge(rows...)
	c.mu.Unlock()
	if n > 0 {
		c.notify()
	}
	return n
}

func (c *Client) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

func (c *Client) action(ctx context.Context, name string, params any, out any) error {
	body, err := json.Marshal(map[string]any{"action": name, "params": params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/actions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var env struct {
			Error APIError `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&env)
		env.Error.Status = resp.StatusCode
		return &env.Error
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response: %w", name, err)
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
}

func (c *Client) streamLoop(ctx context.Context) {
	backoff := time.Second
	for {
		start := time.Now()
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(start) > maxStreamBackoff {
			backoff = time.Second
		}
		c.log.Warn().Err(err).Dur("retryIn", backoff).Msg("realtime stream ended")
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxStreamBackoff {
			backoff = maxStreamBackoff
		}
	}
}

func (c *Client) stream(ctx context.Context) error {
	q := url.Values{}
	if c.cfg.ConversationID != "" {
		q.Set("conversationId", string(c.cfg.ConversationID))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/realtime?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("realtime stream: status %d", resp.StatusCode)
	}
	return ReadEvents(resp.Body, func(typ string, data []byte) {
		if events.Type(typ) != events.MessageCreated {
			return
		}
		var e struct {
			Payload domain.Message `json:"payload"`
		}
		if err := json.Unmarshal(data, &e); err != nil {
			c.log.Warn().Err(err).Msg("bad realtime payload")
			return
		}
		c.merge(e.Payload)
	})
}

// ReadEvents parses a text/event-stream body, calling fn once per dispatched event.
// It returns io.ErrUnexpectedEOF when the stream ends.
func ReadEvents(r io.Reader, fn func(typ string, data []byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var typ string
	var data bytes.Buffer
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				if typ == "" {
					typ = "message"
				}
				fn(typ, bytes.TrimSuffix(data.Bytes(), []byte("\n")))
			}
			typ = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			typ = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			data.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
