// Package pipeline wires capture, template creation, transport and storage
// into the enrollment and verification flows. Each call is one sequential
// run that owns its frame, template and session key.
package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quantumvote/palmscan"
	"github.com/quantumvote/palmscan/capture"
	"github.com/quantumvote/palmscan/config"
	"github.com/quantumvote/palmscan/storage"
	"github.com/quantumvote/palmscan/transport"
)

type Hand string

const (
	Left  Hand = "left"
	Right Hand = "right"
)

var ErrInvalidHand = errors.New("hand must be left/right")

// ErrInvalidVoterCode rejects codes that cannot name a stored file.
var ErrInvalidVoterCode = errors.New("voterCode must be non-empty without path separators or control characters")

func checkVoterCode(voterCode string) error {
	if voterCode == "" || strings.ContainsAny(voterCode, `/\`) || strings.IndexFunc(voterCode, unicode.IsControl) >= 0 {
		return errors.Wrapf(ErrInvalidVoterCode, "%q", voterCode)
	}
	return nil
}

func ParseHand(s string) (Hand, error) {
	switch Hand(s) {
	case Left, Right:
		return Hand(s), nil
	}
	return "", ErrInvalidHand
}

// Outcome is how a run ended when no fatal error occurred.
type Outcome int

const (
	Succeeded Outcome = iota
	// Cancelled means the user cancelled during capture.
	Cancelled
	// Failed means the upload failed; Result.Err holds the
	// *transport.TransportError and the run may be retried.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "success"
	case Cancelled:
		return "cancelled"
	}
	return "failed"
}

type Result struct {
	ID       string
	Outcome  Outcome
	Template *palmscan.Template
	Receipt  *transport.Receipt
	Err      error
}

// Capturer yields one frame per call or capture.ErrUserCancelled.
type Capturer interface {
	Capture(ctx context.Context) (image.Image, error)
}

// Sender delivers a template to the backend.
type Sender interface {
	Send(mode transport.Mode, voterCode string, tpl *palmscan.Template) (*transport.Receipt, error)
}

// Pipeline holds the collaborators of a run. Captures and Debug are
// optional.
type Pipeline struct {
	Capturer  Capturer
	Encoder   config.Encoder
	Sender    Sender
	Templates storage.Store
	Captures  storage.Store
	Debug     storage.Store
}

// Register enrolls one hand of a voter: capture, encode, send with the
// session key, then persist the base64 template as "<hand>_<voter>.b64".
// The template is persisted even when the upload fails.
func (p *Pipeline) Register(ctx context.Context, voterCode string, hand Hand) (*Result, error) {
	if _, err := ParseHand(string(hand)); err != nil {
		return nil, err
	}
	tpl, res, err := p.acquire(ctx, voterCode, string(hand))
	if err != nil || res.Outcome == Cancelled {
		return res, err
	}
	entry := log.WithFields(log.Fields{"id": res.ID, "voter": voterCode, "hand": hand})
	entry.Infof("Template created: %d bytes", tpl.Len())

	if err := p.send(res, transport.ModeEnroll, voterCode); err != nil {
		return nil, err
	}

	if p.Templates != nil {
		name := storage.TemplateName(string(hand), voterCode)
		if err := p.Templates.Put(name, []byte(tpl.Base64())); err != nil {
			return nil, errors.Wrap(err, "cannot persist template")
		}
		entry.WithField("name", name).Info("Saved base64 template")
	}
	return res, nil
}

// Verify captures a palm and submits it for verification.
func (p *Pipeline) Verify(ctx context.Context, voterCode string) (*Result, error) {
	_, res, err := p.acquire(ctx, voterCode, "verify")
	if err != nil || res.Outcome == Cancelled {
		return res, err
	}
	if err := p.send(res, transport.ModeVerify, voterCode); err != nil {
		return nil, err
	}
	return res, nil
}

// CaptureTemplate captures and encodes without contacting the backend.
func (p *Pipeline) CaptureTemplate(ctx context.Context, voterCode string, hand Hand) (*Result, error) {
	if _, err := ParseHand(string(hand)); err != nil {
		return nil, err
	}
	_, res, err := p.acquire(ctx, voterCode, string(hand))
	return res, err
}

func (p *Pipeline) acquire(ctx context.Context, voterCode, tag string) (*palmscan.Template, *Result, error) {
	if err := checkVoterCode(voterCode); err != nil {
		return nil, nil, err
	}
	res := &Result{ID: uuid.NewString()}

	frame, err := p.Capturer.Capture(ctx)
	if errors.Is(err, capture.ErrUserCancelled) {
		res.Outcome = Cancelled
		return nil, res, nil
	}
	if err != nil {
		return nil, nil, err
	}

	img, err := palmscan.FromImage(frame)
	if err != nil {
		return nil, nil, err
	}
	if p.Captures != nil {
		if err := p.saveFrame(storage.CaptureName(tag, voterCode), img); err != nil {
			return nil, nil, err
		}
	}

	var tl *palmscan.TransparencyLogger
	if p.Debug != nil {
		tl = palmscan.NewTransparencyLogger(&storage.StageWriter{Store: p.Debug, Prefix: tag + "_" + voterCode})
	}
	tpl, err := palmscan.NewTemplateCreatorWith(p.Encoder, tl).Template(img)
	if err != nil {
		return nil, nil, err
	}
	res.Template = tpl
	return tpl, res, nil
}

// send records a transport failure on res; other errors are fatal.
func (p *Pipeline) send(res *Result, mode transport.Mode, voterCode string) error {
	receipt, err := p.Sender.Send(mode, voterCode, res.Template)
	var te *transport.TransportError
	switch {
	case errors.As(err, &te):
		res.Outcome = Failed
		res.Err = te
		return nil
	case err != nil:
		return err
	}
	res.Receipt = receipt
	return nil
}

func (p *Pipeline) saveFrame(name string, img *palmscan.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.Gray()); err != nil {
		return errors.Wrap(err, "cannot encode captured frame")
	}
	if err := p.Captures.Put(name, buf.Bytes()); err != nil {
		return errors.Wrap(err, "cannot persist captured frame")
	}
	return nil
}
