package main

import (
	"os"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	// Create a temp file
	tempFile, err := os.CreateTemp("", "config")
	if err != nil {
		t.Fatalf("Error creating temporary file: %v", err)
	}
	defer os.Remove(tempFile.Name())

	configContent := `
bind = ":666"
serve_path = "/p/"
upload_path = "./grapes/"
data_path = "./records/"
ffmpeg = "/opt/ffmpeg/bin/ffmpeg"
debug = true
`
	if _, err := tempFile.Write([]byte(configContent)); err != nil {
		t.Fatalf("Error writing to temporary file: %v", err)
	}

	config := loadConfig(tempFile.Name())

	// Check if the loaded config matches the expected config
	if config.Bind != ":666" {
		t.Errorf("Expected bind to be :666, but got %s", config.Bind)
	}
	if config.ServePath != "/p/" {
		t.Errorf("Expected serve_path to be /p/, but got %s", config.ServePath)
	}
	if config.UploadPath != "./grapes/" {
		t.Errorf("Expected upload_path to be ./grapes/, but got %s", config.UploadPath)
	}
	if config.DataPath != "./records/" {
		t.Errorf("Expected data_path to be ./records/, but got %s", config.DataPath)
	}
	if config.FFmpeg != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("Expected ffmpeg override, but got %s", config.FFmpeg)
	}
	if !config.Debug {
		t.Errorf("Expected debug to be true")
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	var c Config
	applyConfigDefaults(&c)

	if c.Bind != ":3000" || c.ServePath != "/i/" || c.UploadPath != "./uploads/" ||
		c.DataPath != "./data/" || c.FFmpeg != "ffmpeg" {
		t.Errorf("unexpected defaults: %+v", c)
	}

	c = Config{Bind: ":8080"}
	applyConfigDefaults(&c)
	if c.Bind != ":8080" {
		t.Errorf("default clobbered an explicit bind: %s", c.Bind)
	}
}
