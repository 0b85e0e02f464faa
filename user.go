package fingerprint

import (
	"fmt"
	"strings"
	"time"
)

type AccessLevel int

const (
	Level1 AccessLevel = iota + 1
	Level2
	Level3
)

func (a AccessLevel) Valid() bool {
	return a >= Level1 && a <= Level3
}

func (a AccessLevel) String() string {
	if !a.Valid() {
		return fmt.Sprintf("AccessLevel(%d)", int(a))
	}
	return fmt.Sprintf("LEVEL%d", int(a))
}

// Role is the position the level is granted to.
func (a AccessLevel) Role() string {
	switch a {
	case Level1:
		return "Ministry of Environment employee"
	case Level2:
		return "Division director"
	case Level3:
		return "Minister of Environment"
	}
	return ""
}

// ParseAccessLevel accepts "LEVEL2", "level2" or "2".
func ParseAccessLevel(s string) (AccessLevel, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "LEVEL")
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || !AccessLevel(n).Valid() {
		return 0, fmt.Errorf("invalid access level %q", s)
	}
	return AccessLevel(n), nil
}

type User struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	AccessLevel     AccessLevel `json:"access_level"`
	FingerprintName string      `json:"fingerprint_name"`
	CreatedAt       time.Time   `json:"created_at"`
}

// FingerprintName names an enrollment by user name and enrollment time.
func FingerprintName(name string, at time.Time) string {
	return fmt.Sprintf("%s%d", name, at.UnixMilli())
}
