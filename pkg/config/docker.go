package config

import (
	"os"
	"sync"
)

// DockerHostEnv overrides the address used to reach the Docker host.
const DockerHostEnv = "QUERYPAD_DOCKER_HOST"

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether the process runs inside a Docker container,
// detected by the /.dockerenv file. The result is cached after the first call.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker maps a loopback host to the Docker host address when
// running inside Docker, so connections to a database on the developer's
// machine keep working. Other hosts are returned unchanged.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, IsRunningInDocker(), os.Getenv(DockerHostEnv))
}

func resolveHost(host string, inDocker bool, override string) string {
	if !inDocker {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		if override != "" {
			return override
		}
		return "host.docker.internal"
	}
	return host
}
