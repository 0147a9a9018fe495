// Copyright 2026 European Digital Reading Lab. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package conf

import (
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Analytics Server configuration
type Config struct {
	LogLevel  string   `yaml:"log_level" envconfig:"log_level"` // "debug", "info", "warn", "error"
	Port      int      `yaml:"port" envconfig:"port"`
	Dsn       string   `yaml:"dsn" envconfig:"dsn"`
	PageLabel string   `yaml:"page_label" envconfig:"page_label"` // stamped on every ingested event
	Origins   []string `yaml:"origins" envconfig:"origins"`       // CORS allow-list
	// TrustedProxy keys the rate limiters on X-Forwarded-For; leave it
	// false unless a reverse proxy in front of the server sets the header
	TrustedProxy bool `yaml:"trusted_proxy" envconfig:"trusted_proxy"`
	RateLimit    `yaml:"rate_limit"`
	Content      `yaml:"content"`
}

type RateLimit struct {
	APIRequests     int `yaml:"api_requests" envconfig:"api_requests"`           // per window, all API routes
	APIWindowMin    int `yaml:"api_window_min" envconfig:"api_window_min"`       // minutes
	IngestRequests  int `yaml:"ingest_requests" envconfig:"ingest_requests"`     // per window, ingestion only
	IngestWindowSec int `yaml:"ingest_window_sec" envconfig:"ingest_window_sec"` // seconds
}

type Content struct {
	Gateways   []string `yaml:"gateways" envconfig:"gateways"` // IPFS gateways, tried in order
	TimeoutSec int      `yaml:"timeout_sec" envconfig:"content_timeout_sec"`
}

// Init reads the configuration from a yaml file, then lets environment
// variables prefixed by ANALYTICS override individual values.
func Init(configFile string) (*Config, error) {

	var c Config

	if configFile != "" {
		f, _ := filepath.Abs(configFile)
		yamlData, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		err = yaml.Unmarshal(yamlData, &c)
		if err != nil {
			return nil, err
		}
	}

	err := envconfig.Process("analytics", &c)
	if err != nil {
		return nil, err
	}

	c.setDefaults()

	return &c, nil
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = 8081
	}
	if c.PageLabel == "" {
		c.PageLabel = "MEMN_blog"
	}
	if len(c.Origins) == 0 {
		c.Origins = []string{"https://maxenocmn.github.io", "http://localhost:5173"}
	}
	if c.RateLimit.APIRequests == 0 {
		c.RateLimit.APIRequests = 10
	}
	if c.RateLimit.APIWindowMin == 0 {
		c.RateLimit.APIWindowMin = 15
	}
	if c.RateLimit.IngestRequests == 0 {
		c.RateLimit.IngestRequests = 1
	}
	if c.RateLimit.IngestWindowSec == 0 {
		c.RateLimit.IngestWindowSec = 60
	}
	if len(c.Content.Gateways) == 0 {
		c.Content.Gateways = []string{
			"https://cloudflare-ipfs.com/ipfs/",
			"https://ipfs.io/ipfs/",
			"https://gateway.pinata.cloud/ipfs/",
			"https://dweb.link/ipfs/",
			"https://ipfs.infura.io/ipfs/",
		}
	}
	if c.Content.TimeoutSec == 0 {
		c.Content.TimeoutSec = 10
	}
}
