// Package keyexchange fetches per-transaction session keys from the backend's
// key distribution endpoint.
package keyexchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/quantumvote/palmscan/config"
	"github.com/quantumvote/palmscan/payload"
)

// KeyExchangeError means no usable key could be obtained. It aborts the
// enrollment or verification that needed the key.
type KeyExchangeError struct {
	URL    string
	Status int
	Err    error
}

func (e *KeyExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to obtain session key from %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("failed to obtain session key from %s: status %d", e.URL, e.Status)
}

func (e *KeyExchangeError) Unwrap() error { return e.Err }

// SessionKey is one fetched key. Encoded is the trimmed text returned by the
// endpoint; Bytes is its decoded form.
type SessionKey struct {
	Encoded string
	Bytes   []byte
}

// Source yields a fresh session key per call.
type Source interface {
	FetchKey() (*SessionKey, error)
}

// Client performs one GET per FetchKey; there is no caching or retry.
type Client struct {
	url     string
	timeout time.Duration
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{url: url, timeout: timeout}
}

// NewClientFromConfig targets backend.base_url + backend.session_key_path.
func NewClientFromConfig(b config.Backend) *Client {
	return NewClient(b.URL(b.SessionKeyPath), b.Timeout)
}

func (c *Client) FetchKey() (*SessionKey, error) {
	a := fiber.Get(c.url)
	if c.timeout > 0 {
		a.Timeout(c.timeout)
	}
	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return nil, &KeyExchangeError{URL: c.url, Err: errs[0]}
	}
	if code != fiber.StatusOK {
		log.WithFields(log.Fields{"url": c.url, "status": code}).Error("Key exchange rejected")
		return nil, &KeyExchangeError{URL: c.url, Status: code}
	}

	encoded := strings.TrimSpace(string(body))
	key, err := payload.DecodeKey(encoded)
	if err != nil {
		return nil, &KeyExchangeError{URL: c.url, Status: code, Err: err}
	}
	log.WithField("url", c.url).Debug("Session key obtained")
	return &SessionKey{Encoded: encoded, Bytes: key}, nil
}
