package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/querypad/pkg/models"
)

// ConnectionsEnvPrefix introduces a connection field override:
// QUERYPAD_CONNECTIONS__<id>__<field>=<value>.
const ConnectionsEnvPrefix = "QUERYPAD_CONNECTIONS__"

type connectionsFile struct {
	Connections map[string]models.ConnectionConfig `yaml:"connections"`
}

// LoadConnections reads connection definitions from a YAML file and applies
// environment overrides. A missing file is not an error; connections may be
// defined entirely through the environment. Results are sorted by id.
func LoadConnections(path string) ([]models.ConnectionConfig, error) {
	byID := make(map[string]models.ConnectionConfig)

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			var file connectionsFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
			for id, conn := range file.Connections {
				conn.ID = id
				if conn.Fields == nil {
					conn.Fields = make(map[string]any)
				}
				byID[id] = conn
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if err := applyConnectionEnv(byID, os.Environ()); err != nil {
		return nil, err
	}

	result := make([]models.ConnectionConfig, 0, len(byID))
	for _, conn := range byID {
		result = append(result, conn)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// applyConnectionEnv merges QUERYPAD_CONNECTIONS__ variables from environ into byID.
func applyConnectionEnv(byID map[string]models.ConnectionConfig, environ []string) error {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, ConnectionsEnvPrefix) {
			continue
		}
		id, field, ok := strings.Cut(strings.TrimPrefix(key, ConnectionsEnvPrefix), "__")
		if !ok || id == "" || field == "" {
			return fmt.Errorf("malformed connection variable %s: want %s<id>__<field>", key, ConnectionsEnvPrefix)
		}

		conn, exists := byID[id]
		if !exists {
			conn = models.ConnectionConfig{ID: id, Fields: make(map[string]any)}
		}

		switch field {
		case "name":
			conn.Name = value
		case "driver":
			conn.Driver = value
		case "inactivity_timeout_ms":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			conn.InactivityTimeoutMs = n
		case "max_rows":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			conn.MaxRows = n
		default:
			conn.Fields[field] = value
		}
		byID[id] = conn
	}
	return nil
}
