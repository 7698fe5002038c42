package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/ppiankov/ipdd/internal/doc"
)

const keyPrefix = "ipdd:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// GenerationKey derives the cache key of one generation. The technology
// record is canonicalised (RFC 8785) first, so key order and number
// formatting in the input file do not change the key.
func GenerationKey(technology *doc.Node, analysisType, model string) (string, error) {
	raw, err := doc.Marshal(technology)
	if err != nil {
		return "", fmt.Errorf("encode technology: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalise technology: %w", err)
	}

	h := sha256.New()
	h.Write(canonical)
	h.Write([]byte{0})
	h.Write([]byte(analysisType))
	h.Write([]byte{0})
	h.Write([]byte(model))
	return keyPrefix + hex.EncodeToString(h.Sum(nil)), nil
}

// Digest returns the hex SHA-256 of the canonical form of n
func Digest(n *doc.Node) (string, error) {
	raw, err := doc.Marshal(n)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
