package featureflags

import (
	"os"
	"strings"
)

// Kill switches. FACE_IDENTIFY_DISABLED turns off the biometric path
// without a redeploy; ACTIVITY_FEED_DISABLED stops websocket broadcasts.
const (
	FaceIdentifyDisabled = "FACE_IDENTIFY_DISABLED"
	ActivityFeedDisabled = "ACTIVITY_FEED_DISABLED"
)

// Enabled reads a flag from env as FLAG_<NAME>=true/1/yes (case-insensitive).
func Enabled(name string) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
