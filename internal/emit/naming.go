package emit

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// contentHash returns the hex SHA-256 of data truncated to n digits.
func contentHash(data []byte, n int) string {
	sum := sha256.Sum256(data)
	h := hex.EncodeToString(sum[:])
	if n > 0 && n < len(h) {
		return h[:n]
	}
	return h
}

// hasHash reports whether a pattern embeds the content hash.
func hasHash(pattern string) bool {
	return strings.Contains(pattern, "[hash]") || strings.Contains(pattern, "[chunkhash]")
}

// expandName substitutes [name], [id], [hash], [chunkhash] and [ext]. With
// forceHash set, a pattern without a hash placeholder gets ".[hash]"
// inserted before its extension.
func expandName(pattern, name, id, hash, ext string, forceHash bool) string {
	if forceHash && !hasHash(pattern) {
		e := path.Ext(pattern)
		pattern = strings.TrimSuffix(pattern, e) + ".[hash]" + e
	}
	r := strings.NewReplacer(
		"[name]", name,
		"[id]", id,
		"[hash]", hash,
		"[chunkhash]", hash,
		"[ext]", ext,
	)
	return strings.TrimLeft(strings.TrimPrefix(r.Replace(pattern), "./"), "/")
}
