package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/quantumvote/palmscan"
	"github.com/quantumvote/palmscan/capture"
	"github.com/quantumvote/palmscan/config"
	"github.com/quantumvote/palmscan/evaluate"
	"github.com/quantumvote/palmscan/internal/logging"
	"github.com/quantumvote/palmscan/keyexchange"
	"github.com/quantumvote/palmscan/payload"
	"github.com/quantumvote/palmscan/pipeline"
	"github.com/quantumvote/palmscan/server"
	"github.com/quantumvote/palmscan/storage"
	"github.com/quantumvote/palmscan/transport"
)

// logCloser releases the rotating log file opened by setup.
var logCloser io.Closer

func setup(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	logCloser = closer
	return nil
}

func teardown() error {
	if logCloser == nil {
		return nil
	}
	log.SetOutput(os.Stderr)
	err := logCloser.Close()
	logCloser = nil
	return errors.Wrap(err, "cannot close log file")
}

func keysFromConfig(c config.Capture) capture.Keys {
	keys := capture.DefaultKeys
	if r := []rune(c.CaptureKey); len(r) > 0 {
		keys.Capture = r[0]
	}
	if r := []rune(c.CancelKey); len(r) > 0 {
		keys.Cancel = r[0]
	}
	return keys
}

// buildPipeline uses the camera unless imagePath names a still image.
func buildPipeline(cfg *config.Configuration, imagePath, title string) (*pipeline.Pipeline, error) {
	keys := keysFromConfig(cfg.Capture)
	open := capture.OpenCamera(cfg.Capture.Device, title)
	if imagePath != "" {
		img, err := palmscan.LoadImage(imagePath)
		if err != nil {
			return nil, err
		}
		open = capture.Still(img.Gray(), keys)
	}

	p := &pipeline.Pipeline{
		Capturer:  capture.NewCapturer(open, keys, cfg.Capture.Device),
		Encoder:   cfg.Encoder,
		Sender:    transport.NewSender(keyexchange.NewClientFromConfig(cfg.Backend), cfg.Backend),
		Templates: storage.NewFileStore(cfg.Storage.TemplateDir),
		Captures:  storage.NewFileStore(cfg.Storage.CaptureDir),
	}
	if cfg.Storage.DebugDir != "" {
		p.Debug = storage.NewFileStore(cfg.Storage.DebugDir)
	}
	return p, nil
}

func serveAction(c *cli.Context) error {
	cfg := config.Config
	p, err := buildPipeline(cfg, "", "Palm Capture")
	if err != nil {
		return err
	}
	app := server.New(cfg.Server, p)
	log.Infof("Server starting on %s", cfg.Server.Listen)
	return app.Listen(cfg.Server.Listen)
}

func registerAction(c *cli.Context) error {
	hand, err := pipeline.ParseHand(c.String("hand"))
	if err != nil {
		return err
	}
	voter := c.String("voter")
	p, err := buildPipeline(config.Config, c.String("image"), fmt.Sprintf("%s Palm Registration", hand))
	if err != nil {
		return err
	}
	res, err := p.Register(context.Background(), voter, hand)
	if err != nil {
		return err
	}
	return report(res, "Registration complete.")
}

func verifyAction(c *cli.Context) error {
	p, err := buildPipeline(config.Config, c.String("image"), "Palm Verification")
	if err != nil {
		return err
	}
	res, err := p.Verify(context.Background(), c.String("voter"))
	if err != nil {
		return err
	}
	if res.Receipt != nil && res.Receipt.Score != nil {
		log.WithFields(log.Fields{"score": *res.Receipt.Score, "verified": res.Receipt.Verified != nil && *res.Receipt.Verified}).Info("Backend verdict")
	}
	return report(res, "Verification submitted.")
}

// report maps an outcome to the process exit status: cancel exits 0, a
// failed upload exits 2 so scripts can retry.
func report(res *pipeline.Result, done string) error {
	switch res.Outcome {
	case pipeline.Cancelled:
		log.Warn("Cancelled.")
		return nil
	case pipeline.Failed:
		return cli.Exit(fmt.Sprintf("upload failed: %v", res.Err), 2)
	}
	log.WithField("id", res.ID).Info(done)
	return nil
}

func encodeAction(c *cli.Context) error {
	img, err := palmscan.LoadImage(c.String("image"))
	if err != nil {
		return err
	}
	var tl *palmscan.TransparencyLogger
	if dir := config.Config.Storage.DebugDir; dir != "" {
		prefix := strings.TrimSuffix(filepath.Base(c.String("image")), filepath.Ext(c.String("image")))
		tl = palmscan.NewTransparencyLogger(&storage.StageWriter{Store: storage.NewFileStore(dir), Prefix: prefix})
	}
	tpl, err := palmscan.NewTemplateCreator(tl).Template(img)
	if err != nil {
		return err
	}
	if out := c.String("out"); out != "" {
		if err := os.WriteFile(out, []byte(tpl.Base64()), 0644); err != nil {
			return errors.Wrap(err, "cannot write template")
		}
		log.WithField("path", out).Infof("Saved %d byte template", tpl.Len())
		return nil
	}
	fmt.Println(tpl.Base64())
	return nil
}

func evaluateAction(c *cli.Context) error {
	cfg := config.Config.Evaluate
	format := c.String("format")
	if format == "" {
		format = cfg.Format
	}
	samples := c.Int("samples")
	if samples <= 0 {
		samples = cfg.Samples
	}

	records, err := evaluate.ReadPairsFile(c.String("pairs"))
	if err != nil {
		return err
	}
	r, err := evaluate.Run(records, evaluate.LoadTemplateFile, samples)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if out := c.String("out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return errors.Wrap(err, "cannot create report file")
		}
		defer f.Close()
		w = f
	}
	return r.Write(w, format)
}

func keygenAction(c *cli.Context) error {
	key, err := payload.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Println(base64.StdEncoding.EncodeToString(key))
	return nil
}
