package instance

import (
	"os"
	"strings"
)

var idEnvVars = []string{"WORKER_ID", "DYNO", "HOSTNAME"}

// GetID returns the process instance identifier used in logs and lock ownership.
func GetID() string {
	for _, key := range idEnvVars {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return "local"
}
