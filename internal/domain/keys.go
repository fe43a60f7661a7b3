package domain

import "fmt"

const (
	ProcessPrefix = "process:"
	ChainPrefix   = "fpl:"
	BCOPrefix     = "bco:"
	ValuePrefix   = "value:"
)

// ProcessKey builds the canonical key for a stored process invocation
func ProcessKey(id string) string {
	return fmt.Sprintf("%s%s", ProcessPrefix, id)
}

// ChainKey builds the canonical key for a stored chain element
func ChainKey(id string) string {
	return fmt.Sprintf("%s%s", ChainPrefix, id)
}

func BCOKey(objectID string) string {
	return fmt.Sprintf("%s%s", BCOPrefix, objectID)
}

// ValueCacheKey identifies a resolved output across runs. The codec version
// is part of the key so a changed output shape never reads stale values.
func ValueCacheKey(processID, codecVersion string) string {
	return fmt.Sprintf("%s@%s", processID, codecVersion)
}

func ValueKey(cacheKey string) string {
	return fmt.Sprintf("%s%s", ValuePrefix, cacheKey)
}
