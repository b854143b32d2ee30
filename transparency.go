package palmscan

import (
	"bytes"
	"image"

	"github.com/pkg/errors"
	"github.com/spakin/netpbm"
)

// Keys of the intermediate images offered to a TransparencyConsumer.
const (
	StageEqualized = "equalized"
	StageBlurred   = "blurred"
	StageBinarized = "binarized"
	StageResized   = "resized"
)

// MimePGM is the mime type of stage images.
const MimePGM = "image/x-portable-graymap"

// TransparencyConsumer receives intermediate encoder output. Accepts is
// consulted first so that unwanted stages are never serialised.
type TransparencyConsumer interface {
	Accepts(key string) bool
	Accept(key, mime string, data []byte) error
}

// TransparencyLogger serialises stages for a consumer. A nil logger or one
// without a consumer discards everything.
type TransparencyLogger struct {
	consumer TransparencyConsumer
}

func NewTransparencyLogger(c TransparencyConsumer) *TransparencyLogger {
	return &TransparencyLogger{consumer: c}
}

func (l *TransparencyLogger) logImage(key string, img *image.Gray) error {
	if l == nil || l.consumer == nil || !l.consumer.Accepts(key) {
		return nil
	}
	var buf bytes.Buffer
	err := netpbm.Encode(&buf, img, &netpbm.EncodeOptions{
		Format:   netpbm.PGM,
		MaxValue: 255,
		Comments: []string{key},
	})
	if err != nil {
		return errors.Wrapf(err, "cannot encode %s stage", key)
	}
	return l.consumer.Accept(key, MimePGM, buf.Bytes())
}
