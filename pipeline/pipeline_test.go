package pipeline

import (
	"context"
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumvote/palmscan"
	"github.com/quantumvote/palmscan/capture"
	"github.com/quantumvote/palmscan/config"
	"github.com/quantumvote/palmscan/keyexchange"
	"github.com/quantumvote/palmscan/storage"
	"github.com/quantumvote/palmscan/transport"
)

type fakeSender struct {
	err   error
	modes []transport.Mode
	got   *palmscan.Template
}

func (f *fakeSender) Send(mode transport.Mode, voterCode string, tpl *palmscan.Template) (*transport.Receipt, error) {
	f.modes = append(f.modes, mode)
	f.got = tpl
	if f.err != nil {
		return nil, f.err
	}
	return &transport.Receipt{Status: 200}, nil
}

func gray(v uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, 256, 256))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func stillCapturer(img image.Image) Capturer {
	return capture.NewCapturer(capture.Still(img, capture.DefaultKeys), capture.DefaultKeys, 0)
}

func cancelCapturer() Capturer {
	open := func() (capture.Device, error) {
		return &capture.ScriptedDevice{Steps: []capture.Step{{Frame: gray(1), Key: 'q'}}}, nil
	}
	return capture.NewCapturer(open, capture.DefaultKeys, 0)
}

func newPipeline(c Capturer, s Sender) (*Pipeline, *storage.MemoryStore, *storage.MemoryStore) {
	templates, captures := storage.NewMemoryStore(), storage.NewMemoryStore()
	return &Pipeline{
		Capturer:  c,
		Encoder:   config.New().Encoder,
		Sender:    s,
		Templates: templates,
		Captures:  captures,
	}, templates, captures
}

func TestRegisterPersistsTemplate(t *testing.T) {
	s := &fakeSender{}
	p, templates, captures := newPipeline(stillCapturer(gray(128)), s)

	res, err := p.Register(context.Background(), "V123", Left)
	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.Outcome)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, []transport.Mode{transport.ModeEnroll}, s.modes)
	assert.Equal(t, palmscan.TemplateLength, res.Template.Len())

	stored, err := templates.Get("left_V123.b64")
	require.NoError(t, err)
	parsed, err := palmscan.ParseTemplate(string(stored))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(res.Template))

	frame, err := captures.Get("left_V123.png")
	require.NoError(t, err)
	again, err := palmscan.NewTemplateCreatorWith(config.New().Encoder, nil).TemplateFromBytes(frame)
	require.NoError(t, err)
	assert.True(t, again.Equal(res.Template))
}

func TestRegisterTransportFailureIsNotFatal(t *testing.T) {
	s := &fakeSender{err: &transport.TransportError{URL: "u", Status: 500, Body: "boom"}}
	p, templates, _ := newPipeline(stillCapturer(gray(90)), s)

	res, err := p.Register(context.Background(), "V1", Right)
	require.NoError(t, err)
	assert.Equal(t, Failed, res.Outcome)
	var te *transport.TransportError
	assert.ErrorAs(t, res.Err, &te)
	assert.Equal(t, 1, templates.Len())
}

func TestKeyExchangeFailureIsFatal(t *testing.T) {
	s := &fakeSender{err: &keyexchange.KeyExchangeError{URL: "u", Status: 503}}
	p, templates, _ := newPipeline(stillCapturer(gray(90)), s)

	res, err := p.Register(context.Background(), "V1", Left)
	assert.Nil(t, res)
	var ke *keyexchange.KeyExchangeError
	assert.ErrorAs(t, err, &ke)
	assert.Zero(t, templates.Len())
}

func TestCancelledIsNotAnError(t *testing.T) {
	s := &fakeSender{}
	p, templates, captures := newPipeline(cancelCapturer(), s)

	res, err := p.Register(context.Background(), "V1", Left)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, res.Outcome)
	assert.Nil(t, res.Template)
	assert.Empty(t, s.modes)
	assert.Zero(t, templates.Len())
	assert.Zero(t, captures.Len())
}

func TestVerify(t *testing.T) {
	s := &fakeSender{}
	p, templates, captures := newPipeline(stillCapturer(gray(50)), s)

	res, err := p.Verify(context.Background(), "V9")
	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.Outcome)
	assert.Equal(t, []transport.Mode{transport.ModeVerify}, s.modes)
	assert.Zero(t, templates.Len())

	_, err = captures.Get("verify_V9.png")
	assert.NoError(t, err)
}

func TestCaptureTemplateDoesNotSend(t *testing.T) {
	s := &fakeSender{}
	p, _, _ := newPipeline(stillCapturer(gray(50)), s)
	debug := storage.NewMemoryStore()
	p.Debug = debug

	res, err := p.CaptureTemplate(context.Background(), "V2", Right)
	require.NoError(t, err)
	assert.Equal(t, palmscan.TemplateLength, res.Template.Len())
	assert.Empty(t, s.modes)

	names, err := debug.List()
	require.NoError(t, err)
	assert.Contains(t, names, "right_V2_resized.pgm")
}

func TestValidation(t *testing.T) {
	p, _, _ := newPipeline(stillCapturer(gray(1)), &fakeSender{})

	_, err := p.Register(context.Background(), "V1", Hand("middle"))
	assert.ErrorIs(t, err, ErrInvalidHand)
	_, err = p.Verify(context.Background(), "")
	assert.Error(t, err)

	_, err = ParseHand("left")
	assert.NoError(t, err)
}

type countingCapturer struct {
	calls int
}

func (c *countingCapturer) Capture(ctx context.Context) (image.Image, error) {
	c.calls++
	return gray(1), nil
}

func TestVoterCodeCheckedBeforeCapture(t *testing.T) {
	c := &countingCapturer{}
	s := &fakeSender{}
	p, _, _ := newPipeline(c, s)

	for _, code := range []string{"", "A/B", `A\B`, "V\n1"} {
		_, err := p.Verify(context.Background(), code)
		assert.ErrorIs(t, err, ErrInvalidVoterCode, code)
		_, err = p.Register(context.Background(), code, Right)
		assert.ErrorIs(t, err, ErrInvalidVoterCode, code)
	}
	assert.Zero(t, c.calls)
	assert.Empty(t, s.modes)

	_, err := p.Verify(context.Background(), "V?x=1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.calls)
}

func TestCameraFailureIsFatal(t *testing.T) {
	c := capture.NewCapturer(func() (capture.Device, error) { return nil, errors.New("no camera") }, capture.DefaultKeys, 0)
	p, _, _ := newPipeline(c, &fakeSender{})

	_, err := p.Verify(context.Background(), "V1")
	var cu *capture.CameraUnavailableError
	assert.ErrorAs(t, err, &cu)
}
