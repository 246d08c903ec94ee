package session

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// DeviceID derives a stable device identifier from a user-agent and IP
// address pair per spec §6: MD5 hex of "{userAgent or 'unknown'}:{ipAddress
// or 'unknown'}". Callers that already have a client-supplied device id
// should use that instead and never call this.
func DeviceID(userAgent, ipAddress string) string {
	if userAgent == "" {
		userAgent = "unknown"
	}
	if ipAddress == "" {
		ipAddress = "unknown"
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%s", userAgent, ipAddress)))
	return hex.EncodeToString(sum[:])
}
