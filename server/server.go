// Package server exposes the capture client over local HTTP so a browser UI
// can trigger captures and get templates back.
package server

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quantumvote/palmscan"
	"github.com/quantumvote/palmscan/config"
	"github.com/quantumvote/palmscan/pipeline"
)

type handlers struct {
	cfg      config.Server
	pipeline *pipeline.Pipeline
}

// New builds the fiber app. p.Capturer serves /capture and p.Encoder
// configures /encode.
func New(cfg config.Server, p *pipeline.Pipeline) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.CORSOrigins}))

	h := &handlers{cfg: cfg, pipeline: p}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now(),
		})
	})
	app.Get("/capture", h.capture)
	app.Post("/match", h.match)
	app.Post("/encode", h.encode)

	return app
}

func (h *handlers) capture(c *fiber.Ctx) error {
	voterCode := c.Query("voterCode")
	if voterCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(CaptureResponse{Status: "error", Message: "voterCode required"})
	}
	hand, err := pipeline.ParseHand(c.Query("hand"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(CaptureResponse{Status: "error", Message: err.Error()})
	}

	ctx := c.UserContext()
	if h.cfg.CaptureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.CaptureTimeout)
		defer cancel()
	}
	res, err := h.pipeline.CaptureTemplate(ctx, voterCode, hand)
	if errors.Is(err, pipeline.ErrInvalidVoterCode) {
		return c.Status(fiber.StatusBadRequest).JSON(CaptureResponse{Status: "error", Message: err.Error()})
	}
	if err != nil {
		log.WithError(err).WithField("voter", voterCode).Error("Capture failed")
		return c.Status(fiber.StatusInternalServerError).JSON(CaptureResponse{Status: "error", Message: err.Error()})
	}
	if res.Outcome == pipeline.Cancelled {
		return c.Status(fiber.StatusBadRequest).JSON(CaptureResponse{Status: "cancelled"})
	}
	return c.JSON(CaptureResponse{
		Status:    "success",
		Template:  res.Template.Base64(),
		VoterCode: voterCode,
	})
}

func (h *handlers) match(c *fiber.Ctx) error {
	start := time.Now()

	var req MatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(MatchResponse{
			Error: "Invalid request body: " + err.Error(),
		})
	}
	if req.Probe == "" || req.Gallery == "" {
		return c.Status(fiber.StatusBadRequest).JSON(MatchResponse{
			Error: "Both probe and gallery are required",
		})
	}

	probe, err := palmscan.ParseTemplate(req.Probe)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(MatchResponse{Error: "Invalid probe template: " + err.Error()})
	}
	gallery, err := palmscan.ParseTemplate(req.Gallery)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(MatchResponse{Error: "Invalid gallery template: " + err.Error()})
	}

	score := palmscan.NewMatcher(probe).Match(gallery)
	log.WithField("score", score).Debug("Template comparison")
	return c.JSON(MatchResponse{
		Score:   score,
		Match:   score >= h.cfg.MatchThreshold,
		Elapsed: time.Since(start).String(),
	})
}

func (h *handlers) encode(c *fiber.Ctx) error {
	var req EncodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(EncodeResponse{Error: "Invalid request body: " + err.Error()})
	}
	data, err := decodeImage(req.Image)
	if err != nil {
		return err
	}

	tpl, err := palmscan.NewTemplateCreatorWith(h.pipeline.Encoder, nil).TemplateFromBytes(data)
	if err != nil {
		var le *palmscan.ImageLoadError
		if errors.As(err, &le) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return err
	}
	return c.JSON(EncodeResponse{Template: tpl.Base64(), Length: tpl.Len()})
}

// decodeImage accepts raw base64 or a data URI of a supported image type.
func decodeImage(b64 string) ([]byte, error) {
	if b64 == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "image is required")
	}
	if strings.HasPrefix(b64, "data:") {
		parts := strings.SplitN(b64, ",", 2)
		if len(parts) != 2 {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid base64 image format")
		}
		meta := parts[0]
		b64 = parts[1]

		supported := false
		for _, t := range []string{"image/jpeg", "image/png", "image/gif", "image/x-portable-graymap", "image/wsq"} {
			if strings.Contains(meta, t) {
				supported = true
				break
			}
		}
		if !supported {
			return nil, fiber.NewError(fiber.StatusUnsupportedMediaType, "Unsupported image type")
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Failed to decode base64: "+err.Error())
	}
	return decoded, nil
}
