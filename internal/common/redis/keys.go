package redis

import (
	"fmt"
	"strings"
)

// DefaultEventKeyPrefix prefixes per-ping event lists
const DefaultEventKeyPrefix = "events"

// KeyGenerator builds Redis keys for recorded event lists
type KeyGenerator struct {
	prefix string
}

// NewKeyGenerator creates a KeyGenerator. An empty prefix uses DefaultEventKeyPrefix.
func NewKeyGenerator(prefix string) *KeyGenerator {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = DefaultEventKeyPrefix
	}
	return &KeyGenerator{prefix: prefix}
}

// EventListKey returns "{prefix}:{recorderID}:{ping}"
func (kg *KeyGenerator) EventListKey(recorderID, ping string) string {
	return fmt.Sprintf("%s:%s:%s", kg.prefix, recorderID, ping)
}

// ParseEventListKey splits a key produced by EventListKey
func (kg *KeyGenerator) ParseEventListKey(key string) (recorderID, ping string, err error) {
	rest, ok := strings.CutPrefix(key, kg.prefix+":")
	if !ok {
		return "", "", fmt.Errorf("invalid event list key: %s", key)
	}
	recorderID, ping, ok = strings.Cut(rest, ":")
	if !ok || recorderID == "" || ping == "" {
		return "", "", fmt.Errorf("invalid event list key: %s", key)
	}
	return recorderID, ping, nil
}
