package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration file shape. Flags override file values.
type Config struct {
	Out           string   `yaml:"out"`
	Roots         []string `yaml:"roots"`
	Files         []string `yaml:"files"`
	Extensions    []string `yaml:"extensions"`
	Workers       int      `yaml:"workers"`
	Lenient       bool     `yaml:"lenient"`
	RemoveSources bool     `yaml:"remove_sources"`
	Compression   string   `yaml:"compression"`

	STFT struct {
		Feature    string `yaml:"feature"`
		FFTSize    int    `yaml:"fft_size"`
		Hop        int    `yaml:"hop"`
		SampleRate int    `yaml:"sample_rate"`
		Window     string `yaml:"window"`
	} `yaml:"stft"`

	Publish PublishConfig `yaml:"publish"`
}

// PublishConfig selects the blobstore backend finished banks go to.
type PublishConfig struct {
	Backend  string `yaml:"backend"` // local, minio or s3
	Path     string `yaml:"path"`    // local: target directory
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Insecure bool   `yaml:"insecure"`
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
