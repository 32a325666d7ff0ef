package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v2"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry is one documented configuration key.
type Entry struct {
	Key         string
	Value       any
	Description string
}

// DefaultEntries returns every configuration key with its default value.
// Durations are strings so they round-trip through YAML readably.
func DefaultEntries() []Entry {
	d := DefaultConfig()
	return []Entry{
		// ===================
		// External OCR service
		// ===================
		{
			Key:         "service.base_url",
			Value:       d.Service.BaseURL,
			Description: "Base URL of the OCR service API, including /api/v1",
		},
		{
			Key:         "service.api_key",
			Value:       d.Service.APIKey,
			Description: "Credential sent on every data request (supports ${ENV_VAR})",
		},
		{
			Key:         "service.auth_header",
			Value:       d.Service.AuthHeader,
			Description: "Header carrying the credential",
		},
		{
			Key:         "service.timeout",
			Value:       d.Service.Timeout.String(),
			Description: "HTTP timeout per request; uploads are processed synchronously",
		},
		{
			Key:         "service.wait_ready",
			Value:       d.Service.WaitReady.String(),
			Description: "How long serve waits for the service health check (0 skips)",
		},

		// ===================
		// Dashboard
		// ===================
		{
			Key:         "dashboard.host",
			Value:       d.Dashboard.Host,
			Description: "Address the dashboard listens on",
		},
		{
			Key:         "dashboard.port",
			Value:       d.Dashboard.Port,
			Description: "Port the dashboard listens on",
		},
		{
			Key:         "dashboard.default_language",
			Value:       d.Dashboard.DefaultLanguage,
			Description: "Language preselected for uploads (en or ko)",
		},
		{
			Key:         "dashboard.max_upload_mb",
			Value:       d.Dashboard.MaxUploadMB,
			Description: "Largest file accepted for upload, in MiB",
		},
		{
			Key:         "dashboard.jobs_limit",
			Value:       d.Dashboard.JobsLimit,
			Description: "Maximum number of jobs listed",
		},

		// ===================
		// Logging
		// ===================
		{
			Key:         "log.level",
			Value:       d.Log.Level,
			Description: "debug, info, warn or error; applied live on config reload",
		},
		{
			Key:         "log.format",
			Value:       d.Log.Format,
			Description: "text or json",
		},
	}
}

// GetDefault returns the default entry for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// Describe returns the description of a key or ErrNoDefault.
func Describe(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	def := GetDefault(key)
	if def == nil {
		return "", fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return def.Description, nil
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}

// defaultDocument nests the default entries by their dotted keys, keeping
// declaration order.
func defaultDocument() yaml.MapSlice {
	var doc yaml.MapSlice
	for _, entry := range DefaultEntries() {
		doc = insert(doc, strings.Split(entry.Key, "."), entry.Value)
	}
	return doc
}

func insert(doc yaml.MapSlice, path []string, value any) yaml.MapSlice {
	if len(path) == 1 {
		return append(doc, yaml.MapItem{Key: path[0], Value: value})
	}
	for i, item := range doc {
		if item.Key == path[0] {
			child, _ := item.Value.(yaml.MapSlice)
			doc[i].Value = insert(child, path[1:], value)
			return doc
		}
	}
	return append(doc, yaml.MapItem{Key: path[0], Value: insert(nil, path[1:], value)})
}
