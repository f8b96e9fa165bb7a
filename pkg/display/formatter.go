package display

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// New creates a new formatter based on configuration.
func New(cfg Config) Formatter {
	if cfg.Format == "" {
		cfg.Format = FormatTable
	}

	switch cfg.Format {
	case FormatJSON:
		return &jsonFormatter{config: cfg}
	case FormatSimple:
		return &simpleFormatter{config: cfg}
	case FormatTable:
		fallthrough
	default:
		return &tableFormatter{config: cfg}
	}
}

// ParseFormat validates a format name. An empty name is allowed and means
// "pick a default".
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case "", FormatTable, FormatJSON, FormatSimple:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (valid: table, json, simple)", name)
	}
}

// DefaultFormat returns FormatTable when fd is a terminal and FormatJSON
// otherwise, so piped output stays machine-readable.
func DefaultFormat(fd int) Format {
	if term.IsTerminal(fd) {
		return FormatTable
	}
	return FormatJSON
}

// formatNumber formats a number with thousand separators.
func formatNumber(n uint64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// writeHeader writes a section header.
func writeHeader(w io.Writer, title string, compact bool) error {
	if compact {
		_, err := fmt.Fprintf(w, "%s\n", title)
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n%s\n\n", title, strings.Repeat("=", len(title)))
	return err
}

const timeLayout = "2006-01-02 15:04:05"
