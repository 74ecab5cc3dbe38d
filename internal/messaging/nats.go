// Package messaging provides a NATS client wrapper for the match engine's
// request/reply surface. It handles connection lifecycle, subject-based
// subscriptions, and convenience methods for the engine's three operations.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects served by the engine. All three are request/reply: callers
// publish a JSON request with a reply inbox and receive a JSON response.
const (
	SubjectCompatRequest     = "engine.compat.request"
	SubjectCandidatesRequest = "engine.candidates.request"
	SubjectQuestionsRequest  = "engine.questions.request"
)

// Client wraps the NATS connection with helper methods for the engine surface.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "match-engine",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Request performs a request/reply round-trip with the given timeout.
func (c *Client) Request(subject string, data []byte, timeout time.Duration) ([]byte, error) {
	msg, err := c.conn.Request(subject, data, timeout)
	if err != nil {
		return nil, fmt.Errorf("nats request %s: %w", subject, err)
	}
	return msg.Data, nil
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup. Handlers receive the raw
// message so they can Respond on the caller's reply inbox.
func (c *Client) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// SubscribeCompatRequest subscribes to pairwise compatibility requests.
func (c *Client) SubscribeCompatRequest(handler func(msg *nats.Msg)) error {
	return c.Subscribe(SubjectCompatRequest, handler)
}

// SubscribeCandidatesRequest subscribes to ranked-candidate requests.
func (c *Client) SubscribeCandidatesRequest(handler func(msg *nats.Msg)) error {
	return c.Subscribe(SubjectCandidatesRequest, handler)
}

// SubscribeQuestionsRequest subscribes to next-question recommendation requests.
func (c *Client) SubscribeQuestionsRequest(handler func(msg *nats.Msg)) error {
	return c.Subscribe(SubjectQuestionsRequest, handler)
}

// Close drains all subscriptions and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	for key, sub := range c.subs {
		sub.Unsubscribe()
		delete(c.subs, key)
	}
	c.mu.Unlock()

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] drain: %v", err)
	}
}
