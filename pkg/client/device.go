package client

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// Fingerprint derives a stable identifier for the current machine: the
// sha256 hex of "mac:hostname:os:arch". Every signal degrades gracefully,
// so two calls on the same machine always agree; only when no hardware
// signal at all is available does it fall back to a random, ephemeral ID.
func Fingerprint() string {
	mac := primaryMACAddress()
	hostname := normalizedHostname()

	if mac == "" && hostname == "" {
		// Nothing stable to hash. An ephemeral ID at least lets the app
		// run; it will register as a new device on the next reinstall.
		return hashFingerprint(uuid.NewString())
	}

	raw := strings.Join([]string{mac, hostname, runtime.GOOS, runtime.GOARCH}, ":")
	return hashFingerprint(raw)
}

func hashFingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// primaryMACAddress returns the MAC of the first up, non-loopback
// interface, falling back to any interface with a hardware address.
func primaryMACAddress() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if mac := usableMAC(iface.HardwareAddr); mac != "" {
			return mac
		}
	}

	for _, iface := range interfaces {
		if mac := usableMAC(iface.HardwareAddr); mac != "" {
			return mac
		}
	}

	return ""
}

func usableMAC(addr net.HardwareAddr) string {
	if len(addr) == 0 {
		return ""
	}
	mac := addr.String()
	if mac == "" || mac == "00:00:00:00:00:00" {
		return ""
	}
	return mac
}

func normalizedHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(hostname))
}

// OSInfo describes the local platform the way the server's activity log
// expects it, e.g. "linux/amd64".
func OSInfo() string {
	return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
}
