package instance

import (
	"os"

	"github.com/sudhir1041/nursery-orders/pkg/env"
)

// GetID names the running process in logs. NURSERY_INSTANCE_ID wins, then
// the platform dyno name, then the hostname.
func GetID() string {
	if id := env.First("", "NURSERY_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
