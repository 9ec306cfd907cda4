package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/BurntSushi/toml"
)

const usage = `Usage:
  -c, --config         Path to a configuration file (default: config.toml)
  -b, --bind           Address to bind the server to (default: :3000)
  -s, --serve-path     Path to serve images from (default: /i/)
  -u, --upload-path    Path to store uploaded images (default: ./uploads/)
  -d, --data-path      Path to store photo records (default: ./data/)`

func GenerateConfig() Config {
	// Parse the command-line flags and load the config
	var configFile string
	var bindOpt string
	var servePathOpt string
	var uploadPathOpt string
	var dataPathOpt string

	flag.StringVar(&configFile, "c", "config.toml", "Path to the configuration file")
	flag.StringVar(&configFile, "config", "config.toml", "Path to the configuration file")
	flag.StringVar(&bindOpt, "b", "", "Address to bind the server to")
	flag.StringVar(&bindOpt, "bind", "", "Address to bind the server to")
	flag.StringVar(&servePathOpt, "s", "", "Path to serve images from")
	flag.StringVar(&servePathOpt, "serve-path", "", "Path to serve images from")
	flag.StringVar(&uploadPathOpt, "u", "", "Path to store uploaded images")
	flag.StringVar(&uploadPathOpt, "upload-path", "", "Path to store uploaded images")
	flag.StringVar(&dataPathOpt, "d", "", "Path to store photo records")
	flag.StringVar(&dataPathOpt, "data-path", "", "Path to store photo records")

	flag.Usage = func() {
		fmt.Println(usage)
	}

	if !flag.Parsed() {
		flag.Parse()
	}

	// Load the config file if it exists otherwise use default values
	if _, err := os.Stat(configFile); err == nil {
		config = loadConfig(configFile)
	} else {
		config = Config{}
	}

	// Override the config values with the command-line flags
	options := map[*string]*string{
		&bindOpt:       &config.Bind,
		&servePathOpt:  &config.ServePath,
		&uploadPathOpt: &config.UploadPath,
		&dataPathOpt:   &config.DataPath,
	}

	for option, configField := range options {
		if *option != "" {
			*configField = *option
		}
	}

	applyConfigDefaults(&config)

	return config
}

// applyConfigDefaults fills in whatever neither the config file nor the
// flags set.
func applyConfigDefaults(c *Config) {
	if c.Bind == "" {
		c.Bind = ":3000"
	}
	if c.ServePath == "" {
		c.ServePath = "/i/"
	}
	if c.UploadPath == "" {
		c.UploadPath = "./uploads/"
	}
	if c.DataPath == "" {
		c.DataPath = "./data/"
	}
	if c.FFmpeg == "" {
		c.FFmpeg = "ffmpeg"
	}
}

func loadConfig(configFile string) Config {

	var config Config

	if _, err := toml.DecodeFile(configFile, &config); err != nil {
		log.Fatalf("Error in parsing config file: %v", err)
	}

	return config
}
