package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// KeyPrefix starts every layout key.
const KeyPrefix = "layout"

// Digest returns the hex SHA-256 of data. Solver requests and file cache
// entries are addressed by it.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// layoutKey builds "layout:<mode>:<direction>:<digest>". The digest covers
// the request hash and all options; mode and direction are repeated in
// clear so entries can be listed per setting in Redis.
func layoutKey(requestHash string, opts LayoutKeyOpts) string {
	data, _ := json.Marshal(struct {
		Request string        `json:"request"`
		Opts    LayoutKeyOpts `json:"opts"`
	}{requestHash, opts})
	return strings.Join([]string{KeyPrefix, segment(opts.Mode), segment(opts.Direction), Digest(data)}, ":")
}

func segment(s string) string {
	if s == "" {
		return "auto"
	}
	return strings.ToLower(s)
}
