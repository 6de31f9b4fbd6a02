package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate is an event budget per fixed window. A zero Rate means unlimited.
type Rate struct {
	Limit  int
	Window time.Duration
}

func (r Rate) Unlimited() bool {
	return r.Limit <= 0 || r.Window <= 0
}

// ParseRate parses "N/s", "N/m" or "N/h". An empty string is unlimited.
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rate{}, nil
	}
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return Rate{}, fmt.Errorf("invalid rate format: %s", s)
	}

	limit, err := strconv.Atoi(parts[0])
	if err != nil || limit <= 0 {
		return Rate{}, fmt.Errorf("invalid rate count: %s", parts[0])
	}

	var window time.Duration
	switch strings.ToLower(parts[1]) {
	case "s":
		window = time.Second
	case "m":
		window = time.Minute
	case "h":
		window = time.Hour
	default:
		return Rate{}, fmt.Errorf("invalid rate duration unit: %s", parts[1])
	}
	return Rate{Limit: limit, Window: window}, nil
}
