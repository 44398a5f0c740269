// Package config loads runtime settings from environment variables and an
// optional config file.
package config

import (
	"fmt"
	"strings"

	"cgi_upload_server/body"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Config holds the settings shared by CGI and daemon mode.
type Config struct {
	UploadDir      string
	MaxBodySize    int64
	MaxChunkedSize int64
	LocationPrefix string
	Quiet          bool
}

// Limits returns the body limits derived from the config.
func (c *Config) Limits() body.Limits {
	return body.Limits{MaxBody: c.MaxBodySize, MaxChunked: c.MaxChunkedSize}
}

// env bindings, key -> variable
var bindings = map[string]string{
	"upload_dir":       "UPLOAD_DIR",
	"max_body_size":    "UPLOAD_MAX_BODY_SIZE",
	"max_chunked_size": "UPLOAD_MAX_CHUNKED_SIZE",
	"location_prefix":  "UPLOAD_LOCATION_PREFIX",
	"quiet":            "UPLOAD_QUIET",
}

// Load reads configuration. path may be empty; otherwise the file is read
// first and environment variables override it.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("max_body_size", "10MiB")
	v.SetDefault("location_prefix", "/uploads/")
	v.SetDefault("quiet", false)

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	maxBody, err := parseSize(v.GetString("max_body_size"))
	if err != nil {
		return nil, fmt.Errorf("max_body_size: %w", err)
	}
	maxChunked := maxBody
	if s := v.GetString("max_chunked_size"); s != "" {
		if maxChunked, err = parseSize(s); err != nil {
			return nil, fmt.Errorf("max_chunked_size: %w", err)
		}
	}

	prefix := v.GetString("location_prefix")
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &Config{
		UploadDir:      v.GetString("upload_dir"),
		MaxBodySize:    maxBody,
		MaxChunkedSize: maxChunked,
		LocationPrefix: prefix,
		Quiet:          v.GetBool("quiet"),
	}, nil
}

func parseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if n == 0 || n > 1<<40 {
		return 0, fmt.Errorf("size %q out of range", s)
	}
	return int64(n), nil
}
