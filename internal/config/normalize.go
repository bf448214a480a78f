package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEndpoints()
	c.normalizeTranscode()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEndpoints() {
	if c.Endpoints.UploadURL == "" {
		if value, ok := os.LookupEnv("VIDPIPE_UPLOAD_URL"); ok {
			c.Endpoints.UploadURL = value
		}
	}
	if c.Endpoints.MetadataURL == "" {
		if value, ok := os.LookupEnv("VIDPIPE_METADATA_URL"); ok {
			c.Endpoints.MetadataURL = value
		}
	}
	c.Endpoints.UploadURL = strings.TrimSpace(c.Endpoints.UploadURL)
	c.Endpoints.MetadataURL = strings.TrimSpace(c.Endpoints.MetadataURL)
	if c.Endpoints.RequestTimeout <= 0 {
		c.Endpoints.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeTranscode() {
	c.Transcode.Engine = strings.ToLower(strings.TrimSpace(c.Transcode.Engine))
	if c.Transcode.Engine == "" {
		c.Transcode.Engine = defaultTranscodeEngine
	}
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
	if c.Transcode.FFmpegBinary == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
	c.Transcode.Preset = strings.TrimSpace(c.Transcode.Preset)
	if c.Transcode.Preset == "" {
		c.Transcode.Preset = defaultTranscodePreset
	}
	if c.Transcode.CacheEntries <= 0 {
		c.Transcode.CacheEntries = defaultCacheEntries
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.ProgressPerMinute <= 0 {
		c.Notifications.ProgressPerMinute = defaultProgressPerMinute
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
