package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEndpoints(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEndpoints() error {
	if c.Endpoints.UploadURL == "" {
		return errors.New("endpoints.upload_url is required. Set VIDPIPE_UPLOAD_URL or edit the config file")
	}
	if _, err := url.ParseRequestURI(c.Endpoints.UploadURL); err != nil {
		return fmt.Errorf("endpoints.upload_url: %w", err)
	}
	if c.Endpoints.MetadataURL == "" {
		return errors.New("endpoints.metadata_url is required. Set VIDPIPE_METADATA_URL or edit the config file")
	}
	if _, err := url.ParseRequestURI(c.Endpoints.MetadataURL); err != nil {
		return fmt.Errorf("endpoints.metadata_url: %w", err)
	}
	return nil
}

func (c *Config) validateTranscode() error {
	switch c.Transcode.Engine {
	case "ffmpeg", "drapto":
	default:
		return fmt.Errorf("transcode.engine: unsupported value %q", c.Transcode.Engine)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
