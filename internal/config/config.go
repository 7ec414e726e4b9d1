package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. It is loaded once at startup
// and passed to components as a plain struct.
type Config struct {
	Camera struct {
		URL                    string        `yaml:"url" env:"CAMERA_URL"`
		ID                     string        `yaml:"id" env:"CAMERA_ID"`
		FPS                    int           `yaml:"fps" env:"CAMERA_FPS"`
		ConnectTimeout         time.Duration `yaml:"connect_timeout" env:"CAMERA_CONNECT_TIMEOUT"`
		MaxConsecutiveFailures int           `yaml:"max_consecutive_failures" env:"CAMERA_MAX_FAILURES"`
		MaxBackoff             time.Duration `yaml:"max_backoff" env:"CAMERA_MAX_BACKOFF"`
	} `yaml:"camera"`

	Motion struct {
		Sensitivity    float64 `yaml:"sensitivity" env:"MOTION_SENSITIVITY"`
		LearningFrames int     `yaml:"learning_frames" env:"MOTION_LEARNING_FRAMES"`
		PixelDelta     int     `yaml:"pixel_delta" env:"MOTION_PIXEL_DELTA"`
		SamplingRate   int     `yaml:"sampling_rate" env:"MOTION_SAMPLING_RATE"`
	} `yaml:"motion"`

	Detector struct {
		Endpoint        string   `yaml:"endpoint" env:"DETECTOR_ENDPOINT"`
		ModelPath       string   `yaml:"model_path" env:"DETECTOR_MODEL_PATH"`
		ConfidenceFloor float64  `yaml:"confidence_floor" env:"DETECTOR_CONFIDENCE_FLOOR"`
		Blacklist       []string `yaml:"blacklist" env:"DETECTOR_BLACKLIST" envSeparator:","`
	} `yaml:"detector"`

	Describer struct {
		Endpoint string        `yaml:"endpoint" env:"DESCRIBER_ENDPOINT"`
		Model    string        `yaml:"model" env:"DESCRIBER_MODEL"`
		Timeout  time.Duration `yaml:"timeout" env:"DESCRIBER_TIMEOUT"`
	} `yaml:"describer"`

	Dedup struct {
		WindowSeconds int `yaml:"window_seconds" env:"DEDUP_WINDOW_SECONDS"`
	} `yaml:"dedup"`

	Storage struct {
		Root                string  `yaml:"root" env:"STORAGE_ROOT"`
		MaxGB               float64 `yaml:"max_gb" env:"STORAGE_MAX_GB"`
		CheckIntervalEvents int     `yaml:"check_interval_events" env:"STORAGE_CHECK_INTERVAL"`
		MinRetentionDays    int     `yaml:"min_retention_days" env:"STORAGE_MIN_RETENTION_DAYS"`
		DatabasePath        string  `yaml:"database_path" env:"STORAGE_DATABASE_PATH"`
	} `yaml:"storage"`

	Log struct {
		Verbosity string `yaml:"verbosity" env:"LOG_VERBOSITY"`
		Directory string `yaml:"directory" env:"LOG_DIRECTORY"`
	} `yaml:"log"`
}

// Default returns a config with workable defaults for everything except the
// camera URL, which has no sane default.
func Default() *Config {
	cfg := &Config{}
	cfg.Camera.ID = "cam-01"
	cfg.Camera.FPS = 10
	cfg.Camera.ConnectTimeout = 10 * time.Second
	cfg.Camera.MaxConsecutiveFailures = 10
	cfg.Camera.MaxBackoff = 8 * time.Second
	cfg.Motion.Sensitivity = 0.02
	cfg.Motion.LearningFrames = 100
	cfg.Motion.PixelDelta = 25
	cfg.Motion.SamplingRate = 5
	cfg.Detector.Endpoint = "http://localhost:8081"
	cfg.Detector.ConfidenceFloor = 0.5
	cfg.Describer.Endpoint = "http://localhost:11434"
	cfg.Describer.Model = "llava"
	cfg.Describer.Timeout = 30 * time.Second
	cfg.Dedup.WindowSeconds = 30
	cfg.Storage.Root = "data/events"
	cfg.Storage.MaxGB = 10
	cfg.Storage.CheckIntervalEvents = 10
	cfg.Storage.MinRetentionDays = 3
	cfg.Storage.DatabasePath = "data/vigil.db"
	cfg.Log.Verbosity = "info"
	return cfg
}

// Load reads the YAML file at path (if path is non-empty), then applies
// environment variable overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks every range invariant. Invalid configuration is a startup
// failure, never silently coerced.
func (c *Config) Validate() error {
	if c.Camera.URL == "" {
		return fmt.Errorf("camera.url is required")
	}
	if c.Camera.ID == "" {
		return fmt.Errorf("camera.id is required")
	}
	if c.Camera.FPS < 1 {
		return fmt.Errorf("camera.fps must be >= 1, got %d", c.Camera.FPS)
	}
	if c.Camera.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("camera.max_consecutive_failures must be >= 1, got %d", c.Camera.MaxConsecutiveFailures)
	}
	if c.Camera.MaxBackoff < time.Second {
		return fmt.Errorf("camera.max_backoff must be >= 1s, got %s", c.Camera.MaxBackoff)
	}
	if c.Motion.Sensitivity < 0 || c.Motion.Sensitivity > 1 {
		return fmt.Errorf("motion.sensitivity must be in [0,1], got %g", c.Motion.Sensitivity)
	}
	if c.Motion.LearningFrames < 1 {
		return fmt.Errorf("motion.learning_frames must be >= 1, got %d", c.Motion.LearningFrames)
	}
	if c.Motion.PixelDelta < 1 || c.Motion.PixelDelta > 255 {
		return fmt.Errorf("motion.pixel_delta must be in [1,255], got %d", c.Motion.PixelDelta)
	}
	if c.Motion.SamplingRate < 1 {
		return fmt.Errorf("motion.sampling_rate must be >= 1, got %d", c.Motion.SamplingRate)
	}
	if c.Detector.ConfidenceFloor < 0 || c.Detector.ConfidenceFloor > 1 {
		return fmt.Errorf("detector.confidence_floor must be in [0,1], got %g", c.Detector.ConfidenceFloor)
	}
	if c.Describer.Timeout <= 0 {
		return fmt.Errorf("describer.timeout must be positive, got %s", c.Describer.Timeout)
	}
	if c.Dedup.WindowSeconds < 1 {
		return fmt.Errorf("dedup.window_seconds must be >= 1, got %d", c.Dedup.WindowSeconds)
	}
	if c.Storage.MaxGB <= 0 {
		return fmt.Errorf("storage.max_gb must be positive, got %g", c.Storage.MaxGB)
	}
	if c.Storage.CheckIntervalEvents < 1 {
		return fmt.Errorf("storage.check_interval_events must be >= 1, got %d", c.Storage.CheckIntervalEvents)
	}
	if c.Storage.MinRetentionDays < 0 {
		return fmt.Errorf("storage.min_retention_days must be >= 0, got %d", c.Storage.MinRetentionDays)
	}
	return nil
}
