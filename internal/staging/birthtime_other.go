//go:build !linux

package staging

import "time"

func birthTime(string) (time.Time, bool) {
	return time.Time{}, false
}
