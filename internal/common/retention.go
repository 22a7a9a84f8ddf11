package common

import "time"

// IsExpired returns true if recordedAt is older than the retention window,
// i.e. it is eligible for pruning by the RetentionCleaner. A zero timestamp
// is never considered expired (nothing to prune).
func IsExpired(recordedAt time.Time, retention time.Duration) bool {
	if recordedAt.IsZero() {
		return false
	}
	return time.Since(recordedAt) > retention
}
