// Package config loads and validates the YAML configuration surface
// described by the runtime configuration surface. Loading follows the teacher's shape
// (References/orion-prototipe/internal/config): unmarshal into a typed
// struct with gopkg.in/yaml.v3, then run a dedicated Validate pass that
// rejects anything malformed before the runtime ever starts.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration surface consumed by the runtime.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Streams []StreamConfig `yaml:"streams"`
	Runtime RuntimeConfig  `yaml:"runtime"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
}

// ServerConfig holds the MJPEG/HTTP listen address.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ReplicateConfig turns N logical copies of one stream into N distinct
// stream specs ("Replica expansion").
type ReplicateConfig struct {
	Count int      `yaml:"count"`
	IDs   []string `yaml:"ids"`
}

// ProfileConfig describes one output profile (e.g. "inference" or "ui").
type ProfileConfig struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	FPS         int    `yaml:"fps"`
	KeepAspect  bool   `yaml:"keep_aspect"`
	Interp      string `yaml:"interp"` // nearest | linear | cubic | area
	Format      string `yaml:"format"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

// OutputsConfig is the container for the two semantically-required profiles
// ("inference" and "ui") plus a global fps override.
type OutputsConfig struct {
	FPS      int                      `yaml:"fps"`
	Profiles map[string]ProfileConfig `yaml:"profiles"`
}

// FileSourceConfig configures a "file" stream.
type FileSourceConfig struct {
	Path string `yaml:"path"`
	Loop bool   `yaml:"loop"`
}

// WebcamSourceConfig configures a "webcam" stream.
type WebcamSourceConfig struct {
	Device int `yaml:"device"`
}

// RTSPSourceConfig configures an "rtsp" stream.
type RTSPSourceConfig struct {
	URL string `yaml:"url"`
}

// StreamConfig describes one logical (pre-replica-expansion) camera/source.
type StreamConfig struct {
	ID         string              `yaml:"id"`
	Type       string              `yaml:"type"` // webcam | file | rtsp
	Webcam     *WebcamSourceConfig `yaml:"webcam,omitempty"`
	File       *FileSourceConfig   `yaml:"file,omitempty"`
	RTSP       *RTSPSourceConfig   `yaml:"rtsp,omitempty"`
	Replicate  ReplicateConfig     `yaml:"replicate"`
	Outputs    OutputsConfig       `yaml:"outputs"`

	// LegacyOutput is only present so Load can detect and reject the
	// pre-outputs.profiles schema. It is never read
	// otherwise.
	LegacyOutput map[string]interface{} `yaml:"output,omitempty"`
}

// RuntimeConfig holds the runtime-wide tunables.
type RuntimeConfig struct {
	JPEGQuality     int              `yaml:"jpeg_quality"`
	InfWorkers      int              `yaml:"inf_workers"`
	QueueCapacities QueueCapacities  `yaml:"queue_capacities"`
	Detector        DetectorConfig   `yaml:"detector"`
	Anonymizer      AnonymizerConfig `yaml:"anonymizer"`
	Tracker         TrackerConfig    `yaml:"tracker"`
	ReorderWindow   int              `yaml:"reorder_window"`
	PendingCap      int              `yaml:"pending_cap"`
}

// QueueCapacities holds per-edge bounded queue sizes.
type QueueCapacities struct {
	InferIn      int `yaml:"infer_in"`
	AnalyticsOut int `yaml:"analytics_out"`
	InfStateIn   int `yaml:"inf_state_in"`
	DetRes       int `yaml:"det_res"`
	AnonIn       int `yaml:"anon_in"`
	EncIn        int `yaml:"enc_in"`
}

// DetectorConfig holds detector thresholds and model parameters.
type DetectorConfig struct {
	ScoreThresh float64 `yaml:"score_thresh"`
	CascadeFile string  `yaml:"cascade_file"`
}

// AnonymizerConfig holds anonymizer method/parameters.
type AnonymizerConfig struct {
	Method            string `yaml:"method"` // pixelate | blur
	PixelationDivisor int    `yaml:"pixelation_divisor"`
	BlurKernel        int    `yaml:"blur_kernel"`
}

// TrackerConfig holds tracker thresholds.
type TrackerConfig struct {
	HighThresh        float64 `yaml:"high_thresh"`
	LowThresh         float64 `yaml:"low_thresh"`
	MatchIoUThresh    float64 `yaml:"match_iou_thresh"`
	LowMatchIoUThresh float64 `yaml:"low_match_iou_thresh"`
	MinHits           int     `yaml:"min_hits"`
	MaxMissed         int     `yaml:"max_missed"`
}

// MQTTConfig configures the optional analytics emitter.
type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

// Load reads, parses, and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Runtime.JPEGQuality == 0 {
		cfg.Runtime.JPEGQuality = 75
	}
	if cfg.Runtime.InfWorkers == 0 {
		cfg.Runtime.InfWorkers = 1
	}
	if cfg.Runtime.ReorderWindow == 0 {
		cfg.Runtime.ReorderWindow = 5
	}
	if cfg.Runtime.PendingCap == 0 {
		cfg.Runtime.PendingCap = 500
	}
	if cfg.Runtime.Tracker.HighThresh == 0 {
		cfg.Runtime.Tracker.HighThresh = 0.6
	}
	if cfg.Runtime.Tracker.LowThresh == 0 {
		cfg.Runtime.Tracker.LowThresh = 0.2
	}
	if cfg.Runtime.Tracker.MatchIoUThresh == 0 {
		cfg.Runtime.Tracker.MatchIoUThresh = 0.3
	}
	if cfg.Runtime.Tracker.LowMatchIoUThresh == 0 {
		cfg.Runtime.Tracker.LowMatchIoUThresh = 0.2
	}
	if cfg.Runtime.Tracker.MinHits == 0 {
		cfg.Runtime.Tracker.MinHits = 2
	}
	if cfg.Runtime.Tracker.MaxMissed == 0 {
		cfg.Runtime.Tracker.MaxMissed = 20
	}
	for i := range cfg.Streams {
		s := &cfg.Streams[i]
		if s.Replicate.Count == 0 {
			s.Replicate.Count = 1
		}
		if s.Outputs.FPS > 0 {
			for name, p := range s.Outputs.Profiles {
				p.FPS = s.Outputs.FPS
				s.Outputs.Profiles[name] = p
			}
		}
	}
}
