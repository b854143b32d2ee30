package palmscan

import (
	"image"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quantumvote/palmscan/config"
	"github.com/quantumvote/palmscan/internal/imgproc"
)

// TemplateCreator turns grayscale captures into fixed-length templates:
// adaptive histogram equalisation, Gaussian smoothing, adaptive Gaussian
// thresholding, resize to Size×Size, then row-major flattening. The same
// settings always produce the same template for the same image.
type TemplateCreator struct {
	cfg    config.Encoder
	logger *TransparencyLogger
}

// NewTemplateCreator uses the encoder section of config.Config, or the
// defaults when no configuration has been loaded.
func NewTemplateCreator(l *TransparencyLogger) *TemplateCreator {
	if config.Config == nil {
		config.LoadDefaultConfig()
	}
	return NewTemplateCreatorWith(config.Config.Encoder, l)
}

func NewTemplateCreatorWith(cfg config.Encoder, l *TransparencyLogger) *TemplateCreator {
	return &TemplateCreator{cfg: cfg, logger: l}
}

// Length is the size of every template this creator produces.
func (tc *TemplateCreator) Length() int { return tc.cfg.Size * tc.cfg.Size }

func (tc *TemplateCreator) Template(img *Image) (*Template, error) {
	if img == nil {
		return nil, &ImageLoadError{Err: ErrEmptyImage}
	}

	equalized, err := imgproc.EqualizeAdaptive(img.Gray(), tc.cfg.ClipLimit, tc.cfg.TileGrid)
	if err != nil {
		return nil, errors.Wrap(err, "contrast normalisation failed")
	}
	tc.log(StageEqualized, equalized)

	blurred, err := imgproc.GaussianBlur(equalized, tc.cfg.BlurKernel)
	if err != nil {
		return nil, errors.Wrap(err, "noise suppression failed")
	}
	tc.log(StageBlurred, blurred)

	binary, err := imgproc.AdaptiveThreshold(blurred, tc.cfg.BlockSize, tc.cfg.Offset, tc.cfg.Invert)
	if err != nil {
		return nil, errors.Wrap(err, "binarisation failed")
	}
	tc.log(StageBinarized, binary)

	resized, err := imgproc.Resize(binary, tc.cfg.Size, tc.cfg.Size, tc.cfg.Resample)
	if err != nil {
		return nil, errors.Wrap(err, "normalisation to fixed geometry failed")
	}
	tc.log(StageResized, resized)

	return &Template{data: flatten(resized)}, nil
}

// TemplateFromBytes decodes data and encodes the result.
func (tc *TemplateCreator) TemplateFromBytes(data []byte) (*Template, error) {
	img, err := LoadImageFromBytes(data)
	if err != nil {
		return nil, err
	}
	return tc.Template(img)
}

func (tc *TemplateCreator) log(key string, img *image.Gray) {
	if err := tc.logger.logImage(key, img); err != nil {
		log.WithError(err).WithField("stage", key).Warn("Transparency consumer rejected stage")
	}
}

func flatten(img *image.Gray) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := make([]byte, 0, w*h)
	for y := 0; y < h; y++ {
		off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		out = append(out, img.Pix[off:off+w]...)
	}
	return out
}
