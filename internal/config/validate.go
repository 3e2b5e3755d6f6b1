package config

import "fmt"

var validStreamTypes = map[string]bool{
	"webcam": true,
	"file":   true,
	"rtsp":   true,
}

// Validate rejects malformed configuration: missing required profiles,
// unknown stream type, empty RTSP URL, negative counts, the legacy output
// schema, and a missing/non-positive outputs.fps.
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if len(cfg.Streams) == 0 {
		return fmt.Errorf("at least one stream must be configured")
	}

	seen := make(map[string]bool)
	for i, s := range cfg.Streams {
		if s.ID == "" {
			return fmt.Errorf("streams[%d]: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("streams[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true

		if !validStreamTypes[s.Type] {
			return fmt.Errorf("streams[%d] (%s): unknown type %q", i, s.ID, s.Type)
		}

		switch s.Type {
		case "webcam":
			if s.Webcam == nil {
				return fmt.Errorf("streams[%d] (%s): webcam config required for type webcam", i, s.ID)
			}
		case "file":
			if s.File == nil || s.File.Path == "" {
				return fmt.Errorf("streams[%d] (%s): file.path is required for type file", i, s.ID)
			}
		case "rtsp":
			if s.RTSP == nil || s.RTSP.URL == "" {
				return fmt.Errorf("streams[%d] (%s): rtsp.url is required for type rtsp", i, s.ID)
			}
		}

		if s.LegacyOutput != nil {
			return fmt.Errorf("streams[%d] (%s): legacy 'output' schema is no longer accepted, use 'outputs.profiles'", i, s.ID)
		}

		if s.Replicate.Count < 1 {
			return fmt.Errorf("streams[%d] (%s): replicate.count must be >= 1", i, s.ID)
		}

		if err := validateOutputs(i, s); err != nil {
			return err
		}
	}

	return nil
}

func validateOutputs(i int, s StreamConfig) error {
	if s.Outputs.FPS <= 0 {
		return fmt.Errorf("streams[%d] (%s): outputs.fps must be > 0", i, s.ID)
	}
	for _, required := range []string{"inference", "ui"} {
		p, ok := s.Outputs.Profiles[required]
		if !ok {
			return fmt.Errorf("streams[%d] (%s): outputs.profiles.%s is required", i, s.ID, required)
		}
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("streams[%d] (%s): outputs.profiles.%s width/height must be > 0", i, s.ID, required)
		}
		switch p.Interp {
		case "", "nearest", "linear", "cubic", "area":
		default:
			return fmt.Errorf("streams[%d] (%s): outputs.profiles.%s has unknown interp %q", i, s.ID, required, p.Interp)
		}
	}
	return nil
}
