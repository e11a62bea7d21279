package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/sleepbook/sleepbook/internal/domain"
)

// MaxOutputSize is the maximum allowed size for output to prevent memory exhaustion
const MaxOutputSize = 10 * 1024 * 1024 // 10MB

// writeString writes a string to the writer with error checking and size limits
func writeString(w io.Writer, s string) error {
	if len(s) > MaxOutputSize {
		return fmt.Errorf("output size %d exceeds maximum allowed size %d",
			len(s), MaxOutputSize)
	}

	n, err := fmt.Fprint(w, s)
	if err != nil {
		return fmt.Errorf("failed to write output (wrote %d bytes): %w", n, err)
	}

	if f, ok := w.(interface{ Flush() error }); ok {
		if flushErr := f.Flush(); flushErr != nil {
			return fmt.Errorf("failed to flush output: %w", flushErr)
		}
	}

	return nil
}

// writeOutput is a helper function to write formatted output with error checking and size limits
func writeOutput(w io.Writer, format string, args ...interface{}) error {
	return writeString(w, fmt.Sprintf(format, args...))
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return writeString(w, string(data)+"\n")
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 1, 64) + "h"
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// renderEntry is the plain-text form of an entry, also used for --copy.
func renderEntry(e *domain.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:       %s\n", e.ID)
	fmt.Fprintf(&b, "Date:     %s\n", e.Date)
	fmt.Fprintf(&b, "Bedtime:  %s\n", e.Bedtime)
	fmt.Fprintf(&b, "Wake:     %s\n", e.WakeTime)
	fmt.Fprintf(&b, "Slept:    %s\n", formatHours(e.SleepHours()))
	if len(e.Metrics) > 0 {
		b.WriteString("Metrics:\n")
		for _, m := range e.Metrics {
			fmt.Fprintf(&b, "  %s: %s\n", m.Name, formatValue(m.Value))
		}
	}
	if e.Notes != "" {
		fmt.Fprintf(&b, "Notes:    %s\n", e.Notes)
	}
	return b.String()
}

// renderSummary is one line of history output.
func renderSummary(r domain.SummaryRecord) string {
	id := r.ID
	if id == "" {
		id = "(not migrated)"
	}
	names := make([]string, 0, len(r.Metrics))
	for name, v := range r.Metrics {
		if v != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	line := fmt.Sprintf("%s  %6s  %s", r.Date, formatHours(r.SleepHours), id)
	if len(names) > 0 {
		line += "  " + strings.Join(names, ", ")
	}
	return line + "\n"
}
