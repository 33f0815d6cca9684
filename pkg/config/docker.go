package config

import (
	"os"
	"sync"
)

var (
	inContainerOnce sync.Once
	inContainer     bool
)

// loopbackHosts are rewritten when the engine runs inside a container.
var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// IsRunningInDocker reports whether /.dockerenv exists. The answer is cached.
func IsRunningInDocker() bool {
	inContainerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		inContainer = err == nil
	})
	return inContainer
}

// ResolveHostForDocker points loopback hosts at host.docker.internal when
// running in a container, so Postgres and Redis on the host stay reachable.
// Empty and non-loopback hosts are returned unchanged.
func ResolveHostForDocker(host string) string {
	if !loopbackHosts[host] || !IsRunningInDocker() {
		return host
	}
	return "host.docker.internal"
}
