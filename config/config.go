// Package config holds the tunables of the palm template pipeline, the
// backend endpoints and the local capture service.
//
// Values come from struct tag defaults and may be overridden by a TOML file.
package config

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
)

// Config is the process-wide configuration. Call LoadDefaultConfig or Load
// before reading it.
var Config *Configuration

// EnvConfigPath names the environment variable consulted for the config file.
const EnvConfigPath = "PALMSCAN_CONF"

type Configuration struct {
	Backend  Backend  `toml:"backend"`
	Encoder  Encoder  `toml:"encoder"`
	Capture  Capture  `toml:"capture"`
	Storage  Storage  `toml:"storage"`
	Server   Server   `toml:"server"`
	Log      Log      `toml:"log"`
	Evaluate Evaluate `toml:"evaluate"`
}

type Backend struct {
	BaseURL string `toml:"base_url" default:"http://localhost:8080"`
	// SessionKeyPath is the key-exchange endpoint.
	SessionKeyPath string `toml:"session_key_path" default:"/api/security/qkd/session-key"`
	VerifyPath     string `toml:"verify_path" default:"/api/voter/scan"`
	// EnrollPath is a template; {voterCode} is substituted per request.
	EnrollPath string        `toml:"enroll_path" default:"/api/admin/voters/{voterCode}/register-template"`
	Timeout    time.Duration `toml:"timeout" default:"30s"`
}

type Encoder struct {
	ClipLimit  float64 `toml:"clip_limit" default:"2.0"`
	TileGrid   int     `toml:"tile_grid" default:"8"`
	BlurKernel int     `toml:"blur_kernel" default:"5"`
	BlockSize  int     `toml:"block_size" default:"11"`
	Offset     int     `toml:"offset" default:"2"`
	Invert     bool    `toml:"invert" default:"true"`
	Size       int     `toml:"size" default:"128"`
	// Resample is "bilinear" or "nearest".
	Resample string `toml:"resample" default:"bilinear"`
}

type Capture struct {
	Device     int    `toml:"device" default:"0"`
	CaptureKey string `toml:"capture_key" default:"c"`
	CancelKey  string `toml:"cancel_key" default:"q"`
}

type Storage struct {
	TemplateDir string `toml:"template_dir" default:"templates"`
	CaptureDir  string `toml:"capture_dir" default:"captures"`
	// DebugDir receives intermediate encoder stages when non-empty.
	DebugDir string `toml:"debug_dir"`
}

type Server struct {
	Listen      string `toml:"listen" default:"127.0.0.1:5000"`
	CORSOrigins string `toml:"cors_origins" default:"http://localhost:3000"`
	// MatchThreshold is the score at or above which /match reports a match.
	MatchThreshold float64 `toml:"match_threshold" default:"0.80"`
	// CaptureTimeout bounds one /capture request; zero waits indefinitely.
	CaptureTimeout time.Duration `toml:"capture_timeout" default:"2m"`
}

type Log struct {
	Level        string        `toml:"level" default:"info"`
	Format       string        `toml:"format" default:"text"`
	File         string        `toml:"file"`
	MaxAge       time.Duration `toml:"max_age" default:"168h"`
	RotationTime time.Duration `toml:"rotation_time" default:"24h"`
}

type Evaluate struct {
	Samples int    `toml:"samples" default:"10"`
	Format  string `toml:"format" default:"text"`
}

// New returns a configuration populated with defaults only.
func New() *Configuration {
	c := new(Configuration)
	defaults.SetDefaults(c)
	return c
}

// LoadDefaultConfig resets Config to the defaults.
func LoadDefaultConfig() {
	Config = New()
}

// Load decodes the TOML file at path over the defaults and installs the result
// as Config. An empty path falls back to $PALMSCAN_CONF; if that is empty too,
// defaults are used.
func Load(path string) (*Configuration, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	c := New()
	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, errors.Wrapf(err, "cannot load config file %s", path)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	Config = c
	return c, nil
}

// Validate rejects settings the encoder or transport cannot work with.
func (c *Configuration) Validate() error {
	e := c.Encoder
	switch {
	case e.Size <= 0:
		return errors.Errorf("encoder.size must be positive, got %d", e.Size)
	case e.TileGrid <= 0:
		return errors.Errorf("encoder.tile_grid must be positive, got %d", e.TileGrid)
	case e.BlurKernel <= 0 || e.BlurKernel%2 == 0:
		return errors.Errorf("encoder.blur_kernel must be odd and positive, got %d", e.BlurKernel)
	case e.BlockSize < 3 || e.BlockSize%2 == 0:
		return errors.Errorf("encoder.block_size must be odd and at least 3, got %d", e.BlockSize)
	case e.Resample != "bilinear" && e.Resample != "nearest":
		return errors.Errorf("encoder.resample must be bilinear or nearest, got %q", e.Resample)
	}
	if !strings.Contains(c.Backend.EnrollPath, "{voterCode}") {
		return errors.Errorf("backend.enroll_path must contain {voterCode}, got %q", c.Backend.EnrollPath)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend.timeout must be positive")
	}
	return nil
}

// URL joins the backend base URL with path.
func (b Backend) URL(path string) string {
	return strings.TrimRight(b.BaseURL, "/") + path
}

// EnrollURL substitutes voterCode, escaped as one path segment, into the
// enrollment path template.
func (b Backend) EnrollURL(voterCode string) string {
	return b.URL(strings.ReplaceAll(b.EnrollPath, "{voterCode}", url.PathEscape(voterCode)))
}
