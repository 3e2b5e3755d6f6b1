package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

const validYAML = `
server:
  host: "0.0.0.0"
  port: 8080
streams:
  - id: "file0"
    type: "file"
    file:
      path: "/tmp/test.mp4"
    outputs:
      fps: 12
      profiles:
        inference:
          width: 640
          height: 640
          fps: 5
        ui:
          width: 1280
          height: 720
          fps: 30
`

func TestLoadValidConfig(t *testing.T) {
	path := writeTemp(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(cfg.Streams))
	}
	profiles := cfg.Streams[0].Outputs.Profiles
	if cfg.Streams[0].Outputs.FPS != 12 {
		t.Fatalf("outputs.fps = %d, want 12", cfg.Streams[0].Outputs.FPS)
	}
	if profiles["inference"].FPS != 12 {
		t.Fatalf("inference fps = %d, want 12 (overridden by outputs.fps)", profiles["inference"].FPS)
	}
	if profiles["ui"].FPS != 12 {
		t.Fatalf("ui fps = %d, want 12 (overridden by outputs.fps)", profiles["ui"].FPS)
	}
}

func TestLoadRejectsLegacyOutputSchema(t *testing.T) {
	yaml := `
server:
  host: "0.0.0.0"
  port: 8080
streams:
  - id: "file0"
    type: "file"
    file:
      path: "/tmp/test.mp4"
    output:
      width: 1280
      height: 720
`
	path := writeTemp(t, yaml)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for legacy output schema")
	}
}

func TestLoadRequiresGlobalOutputsFPS(t *testing.T) {
	yaml := `
server:
  host: "0.0.0.0"
  port: 8080
streams:
  - id: "file0"
    type: "file"
    file:
      path: "/tmp/test.mp4"
    outputs:
      profiles:
        inference:
          width: 640
          height: 640
        ui:
          width: 1280
          height: 720
`
	path := writeTemp(t, yaml)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing outputs.fps")
	}
}

func TestLoadRejectsUnknownStreamType(t *testing.T) {
	yaml := `
server:
  host: "0.0.0.0"
  port: 8080
streams:
  - id: "cam0"
    type: "drone"
    outputs:
      fps: 10
      profiles:
        inference:
          width: 640
          height: 640
        ui:
          width: 1280
          height: 720
`
	path := writeTemp(t, yaml)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown stream type")
	}
}

func TestLoadRejectsEmptyRTSPURL(t *testing.T) {
	yaml := `
server:
  host: "0.0.0.0"
  port: 8080
streams:
  - id: "cam0"
    type: "rtsp"
    rtsp:
      url: ""
    outputs:
      fps: 10
      profiles:
        inference:
          width: 640
          height: 640
        ui:
          width: 1280
          height: 720
`
	path := writeTemp(t, yaml)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty rtsp url")
	}
}
