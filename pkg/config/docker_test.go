package config

import (
	"testing"
)

func TestResolveHost(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		inDocker bool
		override string
		expected string
	}{
		{"remote host outside docker", "mydb.example.com", false, "", "mydb.example.com"},
		{"localhost outside docker", "localhost", false, "", "localhost"},
		{"remote host in docker", "192.168.1.100", true, "", "192.168.1.100"},
		{"localhost in docker", "localhost", true, "", "host.docker.internal"},
		{"ipv4 loopback in docker", "127.0.0.1", true, "", "host.docker.internal"},
		{"ipv6 loopback in docker", "::1", true, "", "host.docker.internal"},
		{"override in docker", "localhost", true, "172.17.0.1", "172.17.0.1"},
		{"override ignored outside docker", "localhost", false, "172.17.0.1", "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := resolveHost(tt.host, tt.inDocker, tt.override)
			if result != tt.expected {
				t.Errorf("resolveHost(%q) = %q, want %q", tt.host, result, tt.expected)
			}
		})
	}
}

func TestResolveHostForDocker_NonLoopbackUnchanged(t *testing.T) {
	for _, host := range []string{"mydb.example.com", "host.docker.internal"} {
		if got := ResolveHostForDocker(host); got != host {
			t.Errorf("ResolveHostForDocker(%q) = %q, want unchanged", host, got)
		}
	}
}
