package ingest

import "strings"

const (
	lockPrefix = "__"
	lockSuffix = "__lock__"
)

func isLockSentinel(key string) bool {
	return strings.HasPrefix(key, lockPrefix) && strings.HasSuffix(key, lockSuffix) &&
		len(key) > len(lockPrefix)+len(lockSuffix)
}

func lockSentinelFor(field string) string {
	return lockPrefix + field + lockSuffix
}

// MergeMetadata merges newMetadata onto existing, honoring per-field lock
// sentinels, per spec.md §4.7:
//   - a lock sentinel key (__<field>__lock__) in newMetadata: true
//     sets/keeps the lock, nil (JSON null) removes the sentinel entirely,
//     any other value is stored as-is
//   - a regular key in newMetadata: skipped if its lock sentinel is
//     currently true in existing, otherwise overwritten
//
// Lock sentinels not mentioned in newMetadata are carried over untouched.
func MergeMetadata(existing, newMetadata map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(newMetadata))
	for k, v := range existing {
		merged[k] = v
	}

	for key, value := range newMetadata {
		if isLockSentinel(key) {
			if value == nil {
				delete(merged, key)
			} else {
				merged[key] = value
			}
			continue
		}

		if locked, _ := existing[lockSentinelFor(key)].(bool); locked {
			continue
		}
		merged[key] = value
	}

	return merged
}
