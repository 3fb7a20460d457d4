package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envReader reads keys through viper so values from the environment
// and from bound flags resolve the same way.
type envReader struct {
	v *viper.Viper
}

func (e envReader) str(key, fallback string) string {
	if v := strings.TrimSpace(e.v.GetString(key)); v != "" {
		return v
	}
	return fallback
}

func (e envReader) integer(key string, fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(e.v.GetString(key))); err == nil {
		return n
	}
	return fallback
}

func (e envReader) float(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(e.v.GetString(key)), 64); err == nil {
		return f
	}
	return fallback
}

func (e envReader) boolean(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(e.v.GetString(key)))
	if v == "" {
		return fallback
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func (e envReader) duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(e.v.GetString(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func (e envReader) list(key string, fallback []string) []string {
	v := strings.TrimSpace(e.v.GetString(key))
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
