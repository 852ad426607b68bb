// Package gateway stores processed images for catalog entries and returns the
// public URL of each stored asset.
//
// Two gateways are provided. Directory writes into a local tree laid out like
// the production bucket and is what the reference server serves from. HTTP
// posts to a running asset API. Both validate the payload the same way before
// storing it.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	// DefaultMaxBytes is the largest processed image accepted.
	DefaultMaxBytes = 500 * 1024

	// DefaultPrefix is prepended to every storage key.
	DefaultPrefix = "small/"

	// ContentType is the only payload type accepted.
	ContentType = "image/jpeg"
)

var (
	// ErrNotJPEG rejects payloads that do not sniff as JPEG.
	ErrNotJPEG = errors.New("only processed JPG files are allowed")

	// ErrTooLarge rejects payloads over the size limit.
	ErrTooLarge = errors.New("processed file size exceeds limit")

	// ErrEmpty rejects empty payloads.
	ErrEmpty = errors.New("no file provided")

	// ErrInvalidID rejects entry ids that cannot form a storage key.
	ErrInvalidID = errors.New("invalid entry id")
)

// Validate checks a payload against the storage rules.
func Validate(data []byte, maxBytes int) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(data) == 0 {
		return ErrEmpty
	}
	if http.DetectContentType(data) != ContentType {
		return ErrNotJPEG
	}
	if len(data) > maxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), maxBytes)
	}
	return nil
}

// Key returns the storage key of an entry's image.
func Key(prefix, entryID string) (string, error) {
	if entryID == "" || strings.ContainsAny(entryID, `/\`) || entryID == "." || entryID == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, entryID)
	}
	return prefix + entryID + ".jpg", nil
}

// PublicURL joins base and key, adding a version query for replaced objects
// so caches fetch the new content.
func PublicURL(base, key, version string) string {
	u := strings.TrimRight(base, "/") + "/" + key
	if version != "" {
		u += "?v=" + version
	}
	return u
}
