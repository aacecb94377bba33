package client

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var hexSHA256 = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestFingerprintIsStable(t *testing.T) {
	first := Fingerprint()
	second := Fingerprint()

	assert.Equal(t, first, second, "fingerprint must not change between calls on the same machine")
}

func TestFingerprintLooksLikeSHA256(t *testing.T) {
	fp := Fingerprint()

	assert.Regexp(t, hexSHA256, fp)
}

func TestOSInfoContainsPlatform(t *testing.T) {
	info := OSInfo()

	assert.Contains(t, info, "/")
	assert.NotEmpty(t, info)
}
