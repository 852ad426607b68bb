// Package hasher computes short content hashes for processed assets.
package hasher

import (
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/cespare/xxhash/v2"
)

// VersionLen is the hex length used for cache-busting asset versions.
const VersionLen = 8

// ContentHash computes the xxHash64 of data and returns a hex string
// truncated to hexLen characters (0 or out of range keeps all 16).
func ContentHash(data []byte, hexLen int) string {
	return truncate(xxhash.Sum64(data), hexLen)
}

// ContentHashReader computes the same hash as ContentHash from a stream.
func ContentHashReader(r io.Reader, hexLen int) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return truncate(h.Sum64(), hexLen), nil
}

// Version returns the short hash appended to replaced asset URLs so CDNs and
// browsers fetch the new bytes.
func Version(data []byte) string {
	return ContentHash(data, VersionLen)
}

func truncate(sum uint64, hexLen int) string {
	full := hex.EncodeToString(binary.BigEndian.AppendUint64(nil, sum))
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}
