package identity

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Unix is a session timestamp in whole seconds since the epoch. Zero means
// unset.
type Unix int64

// UnixOf truncates t to the second.
func UnixOf(t time.Time) Unix {
	return Unix(t.Unix())
}

// Time returns u in UTC, or the zero time when u is unset.
func (u Unix) Time() time.Time {
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(int64(u), 0).UTC()
}

func (u Unix) IsZero() bool {
	return u == 0
}

// Before reports whether u is strictly before t, to the second.
func (u Unix) Before(t time.Time) bool {
	return int64(u) < t.Unix()
}

// UnmarshalJSON accepts integer and fractional seconds, rounded, and RFC 3339
// strings.
func (u *Unix) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		*u = UnixOf(t)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", b, err)
	}
	*u = Unix(math.Round(f))
	return nil
}
