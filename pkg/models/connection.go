package models

import (
	"fmt"
	"maps"
	"strconv"
)

// ConnectionConfig is a decrypted connection definition as consumed by the
// connection client layer. Driver-specific values (host, credentials, file
// paths) live in Fields; their shape is owned by the driver named in Driver.
type ConnectionConfig struct {
	ID                  string         `json:"id" yaml:"-"`
	Name                string         `json:"name" yaml:"name"`
	Driver              string         `json:"driver" yaml:"driver"`
	InactivityTimeoutMs int64          `json:"inactivityTimeoutMs,omitempty" yaml:"inactivity_timeout_ms"`
	MaxRows             int            `json:"maxRows,omitempty" yaml:"max_rows"`
	Fields              map[string]any `json:"fields" yaml:",inline"`
}

// Clone returns a copy whose Fields map can be modified independently.
func (c ConnectionConfig) Clone() ConnectionConfig {
	out := c
	out.Fields = make(map[string]any, len(c.Fields))
	maps.Copy(out.Fields, c.Fields)
	return out
}

// Attributes flattens the connection's own attributes into a single map.
// The user that triggered rendering is never part of it.
func (c ConnectionConfig) Attributes() map[string]any {
	attrs := make(map[string]any, len(c.Fields)+5)
	for k, v := range c.Fields {
		attrs[k] = v
	}
	attrs["id"] = c.ID
	attrs["name"] = c.Name
	attrs["driver"] = c.Driver
	attrs["maxRows"] = c.MaxRows
	attrs["inactivityTimeoutMs"] = c.InactivityTimeoutMs
	return attrs
}

// String returns a driver field as a string. Numbers and booleans are formatted.
func (c ConnectionConfig) String(key string) string {
	switch v := c.Fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int returns a driver field as an int, or def when missing or unparseable.
// JSON numbers decode as float64 and env vars arrive as strings; both are accepted.
func (c ConnectionConfig) Int(key string, def int) int {
	switch v := c.Fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns a driver field as a bool, or def when missing or unparseable.
func (c ConnectionConfig) Bool(key string, def bool) bool {
	switch v := c.Fields[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
