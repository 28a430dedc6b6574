package slogobs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Format selects how records are rendered.
type Format string

const (
	// FormatCompact renders one line per record with the attributes as JSON:
	// 2025-11-03 10:40:35  INFO llm response → {"llm.model":"m"}
	FormatCompact Format = "compact"

	// FormatText is the standard slog key=value format.
	FormatText Format = "text"

	// FormatJSON is the standard slog JSON format.
	FormatJSON Format = "json"
)

// ParseFormat parses a format name. Unknown names select FormatCompact.
func ParseFormat(s string) Format {
	switch Format(strings.TrimSpace(strings.ToLower(s))) {
	case FormatText:
		return FormatText
	case FormatJSON:
		return FormatJSON
	default:
		return FormatCompact
	}
}

// FormatFromEnv reads XAGENT_LOG_FORMAT, falling back to LOG_FORMAT.
func FormatFromEnv() Format {
	if format := os.Getenv("XAGENT_LOG_FORMAT"); format != "" {
		return ParseFormat(format)
	}
	return ParseFormat(os.Getenv("LOG_FORMAT"))
}

// ParseLevel parses DEBUG, INFO, WARN/WARNING or ERROR, case-insensitively.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// LevelFromEnv reads XAGENT_LOG_LEVEL, falling back to LOG_LEVEL. Unknown
// values select INFO.
func LevelFromEnv() slog.Level {
	value := os.Getenv("XAGENT_LOG_LEVEL")
	if value == "" {
		value = os.Getenv("LOG_LEVEL")
	}
	level, _ := ParseLevel(value)
	return level
}

// Detail controls how much of each call the Observer logs.
type Detail int

const (
	// DetailMinimal logs one line per call plus retries.
	DetailMinimal Detail = iota
	// DetailStandard adds request shape and token usage.
	DetailStandard
	// DetailVerbose adds request bodies, response content and every delta.
	DetailVerbose
)

// ParseDetail parses minimal, standard or verbose. Unknown names select
// DetailStandard.
func ParseDetail(s string) Detail {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "minimal":
		return DetailMinimal
	case "verbose":
		return DetailVerbose
	default:
		return DetailStandard
	}
}

func (d Detail) String() string {
	switch d {
	case DetailMinimal:
		return "minimal"
	case DetailVerbose:
		return "verbose"
	default:
		return "standard"
	}
}
