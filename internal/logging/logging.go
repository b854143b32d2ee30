// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/quantumvote/palmscan/config"
)

// Setup applies cfg to the standard logger. With a log file configured,
// output also goes to "<file>.<YYYYMMDD>", rotated and pruned per cfg, with
// <file> linked to the current one. The returned closer releases the file.
func Setup(cfg config.Log) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("invalid log format %q", cfg.Format)
	}

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}
	rl, err := rotatelogs.New(
		cfg.File+".%Y%m%d",
		rotatelogs.WithLinkName(cfg.File),
		rotatelogs.WithMaxAge(cfg.MaxAge),
		rotatelogs.WithRotationTime(cfg.RotationTime),
	)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open log file")
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rl))
	return rl, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
