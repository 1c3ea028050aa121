package cache

import (
	"fmt"
	"os"
	"time"
)

// ModTime returns the modification time of actions/<id>, used by the
// shrinker to order actions newest-first / oldest-first (spec.md §4.6).
func ModTime(root, id string) (time.Time, error) {
	info, err := os.Stat(actionPath(root, id))
	if err != nil {
		return time.Time{}, fmt.Errorf("stat action %s: %w", id, err)
	}

	return info.ModTime(), nil
}
