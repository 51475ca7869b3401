package instance

import (
	"os"
	"strings"
)

// EnvWorkerID overrides the identifier a worker reports in logs.
const EnvWorkerID = "HOROLOGE_WORKER_ID"

// GetID returns the configured worker id, the hostname, or "worker-0".
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(EnvWorkerID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
