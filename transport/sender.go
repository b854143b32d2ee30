package transport

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quantumvote/palmscan"
	"github.com/quantumvote/palmscan/config"
	"github.com/quantumvote/palmscan/keyexchange"
	"github.com/quantumvote/palmscan/payload"
)

// TransportError is a network failure or non-2xx reply while posting an
// envelope. It is not fatal: callers may retry the whole capture sequence.
type TransportError struct {
	URL    string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s failed: HTTP %d - %s", e.URL, e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Receipt is a successful backend reply. Verified and Score are set when the
// verification endpoint reports them.
type Receipt struct {
	Status   int
	Body     string
	Verified *bool
	Score    *float64
}

// Sender runs key fetch, encryption and POST for one template at a time.
type Sender struct {
	keys    keyexchange.Source
	backend config.Backend
	timeout time.Duration
}

func NewSender(keys keyexchange.Source, backend config.Backend) *Sender {
	return &Sender{
		keys:    keys,
		backend: backend,
		timeout: backend.Timeout,
	}
}

// URL returns the endpoint for mode and voterCode.
func (s *Sender) URL(mode Mode, voterCode string) string {
	if mode == ModeEnroll {
		return s.backend.EnrollURL(voterCode)
	}
	return s.backend.URL(s.backend.VerifyPath)
}

func (s *Sender) Verify(voterCode string, tpl *palmscan.Template) (*Receipt, error) {
	return s.Send(ModeVerify, voterCode, tpl)
}

func (s *Sender) Enroll(voterCode string, tpl *palmscan.Template) (*Receipt, error) {
	return s.Send(ModeEnroll, voterCode, tpl)
}

// Send fetches a fresh session key, seals tpl and posts the envelope.
// Key exchange and encryption failures are returned as is and nothing is
// sent. Posting failures are logged and returned as *TransportError.
func (s *Sender) Send(mode Mode, voterCode string, tpl *palmscan.Template) (*Receipt, error) {
	if voterCode == "" {
		return nil, errors.New("voter code is required")
	}
	if tpl == nil || tpl.Len() == 0 {
		return nil, errors.New("template is empty")
	}

	key, err := s.keys.FetchKey()
	if err != nil {
		return nil, err
	}
	sealed, err := payload.Encrypt(tpl.Bytes(), key.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encrypt template")
	}

	url := s.URL(mode, voterCode)
	body := NewEnvelope(mode, voterCode, sealed, key.Encoded)
	log.WithFields(log.Fields{
		"mode":    mode,
		"url":     url,
		"payload": len(sealed),
	}).Info("Posting template")

	receipt, err := s.post(url, body)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			log.WithFields(log.Fields{"status": te.Status, "body": te.Body, "url": url}).WithError(te.Err).Error("Template upload failed")
		}
		return nil, err
	}
	log.WithFields(log.Fields{"status": receipt.Status, "body": receipt.Body}).Info("Backend accepted template")
	return receipt, nil
}

func (s *Sender) post(url string, body interface{}) (*Receipt, error) {
	a := fiber.Post(url)
	// Keep escaped voter codes such as %2F intact on the wire. HostClient is
	// nil when the URL did not parse; Bytes reports that error.
	if a.HostClient != nil {
		a.HostClient.DisablePathNormalizing = true
	}
	if s.timeout > 0 {
		a.Timeout(s.timeout)
	}
	a.JSON(body)

	code, resp, errs := a.Bytes()
	if len(errs) > 0 {
		return nil, &TransportError{URL: url, Err: errs[0]}
	}
	text := strings.TrimSpace(string(resp))
	if code < 200 || code > 299 {
		return nil, &TransportError{URL: url, Status: code, Body: text}
	}

	r := &Receipt{Status: code, Body: text}
	var reply struct {
		Verified *bool    `json:"verified"`
		Score    *float64 `json:"score"`
	}
	if json.Unmarshal(resp, &reply) == nil {
		r.Verified, r.Score = reply.Verified, reply.Score
	}
	return r, nil
}
