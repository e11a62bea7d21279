package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sleepbook/sleepbook/internal/domain"
	"github.com/sleepbook/sleepbook/internal/util"
)

// promptPassword reads a password without echo when stdin is a terminal
// and reads a plain line otherwise.
func (a *app) promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(password), nil
	}

	line, err := a.readLine()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return line, nil
}

// readLine reads one line from stdin without its line ending.
func (a *app) readLine() (string, error) {
	if a.lines == nil {
		a.lines = bufio.NewReader(a.stdin)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptConfirm prompts for yes/no confirmation, defaulting to no.
func (a *app) promptConfirm(cmd *cobra.Command, prompt string) (bool, error) {
	if err := writeOutput(cmd.ErrOrStderr(), "%s [y/N]: ", prompt); err != nil {
		return false, err
	}
	input, err := a.readLine()
	if err != nil {
		return false, fmt.Errorf("failed to read input: %w", err)
	}
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes", nil
}

// promptPasswordConfirm prompts for a password and confirmation
func (a *app) promptPasswordConfirm(prompt string) (string, error) {
	password, err := a.readPassword(prompt)
	if err != nil {
		return "", err
	}

	confirm, err := a.readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}

	if password != confirm {
		return "", util.InvalidInput("passwords do not match")
	}

	return password, nil
}

// password returns the account password from the environment or a prompt.
func (a *app) password(prompt string) (string, error) {
	if pw := a.getenv(envPassword); pw != "" {
		return pw, nil
	}
	return a.readPassword(prompt)
}

var errMissingClock = util.InvalidInput("--bedtime and --wake are required")

// entryFlags are the fields shared by add and edit.
type entryFlags struct {
	date    string
	bedtime string
	wake    string
	notes   string
	metrics []string
}

func (f *entryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "night of the entry (yyyy-mm-dd, default today)")
	cmd.Flags().StringVar(&f.bedtime, "bedtime", "", "bedtime (HH:mm)")
	cmd.Flags().StringVar(&f.wake, "wake", "", "wake time (HH:mm)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "free-text notes")
	cmd.Flags().StringArrayVarP(&f.metrics, "metric", "m", nil, "metric value as name=value, or name for a yes flag (repeatable)")
}

// apply copies the flags that were set on cmd into e.
func (f *entryFlags) apply(cmd *cobra.Command, e *domain.Entry) error {
	changed := cmd.Flags().Changed

	if changed("date") {
		d, err := parseDate(f.date)
		if err != nil {
			return err
		}
		e.Date = d
	}
	if changed("bedtime") {
		t, err := parseClock("bedtime", f.bedtime)
		if err != nil {
			return err
		}
		e.Bedtime = t
	}
	if changed("wake") {
		t, err := parseClock("wake", f.wake)
		if err != nil {
			return err
		}
		e.WakeTime = t
	}
	if changed("notes") {
		e.Notes = f.notes
	}
	if changed("metric") {
		metrics, err := parseMetrics(f.metrics)
		if err != nil {
			return err
		}
		e.Metrics = metrics
	}
	return nil
}

// entryID accepts an id in any letter case and returns its stored form.
func entryID(arg string) string {
	return strings.ToLower(strings.TrimSpace(arg))
}

func parseDate(s string) (domain.Date, error) {
	d, err := domain.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return domain.Date{}, util.InvalidInput("date %q: expected yyyy-mm-dd", s)
	}
	return d, nil
}

func parseClock(field, s string) (domain.TimeOfDay, error) {
	t, err := domain.ParseTimeOfDay(strings.TrimSpace(s))
	if err != nil {
		return domain.TimeOfDay{}, util.InvalidInput("%s %q: expected HH:mm", field, s)
	}
	return t, nil
}

// parseMetrics parses "name=value" pairs. A bare name records 1.
func parseMetrics(raw []string) ([]domain.MetricValue, error) {
	metrics := make([]domain.MetricValue, 0, len(raw))
	for _, item := range raw {
		name, value, hasValue := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, util.InvalidInput("metric %q: missing name", item)
		}
		v := 1.0
		if hasValue {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return nil, util.InvalidInput("metric %q: value must be a number", item)
			}
			v = parsed
		}
		metrics = append(metrics, domain.MetricValue{Name: name, Value: v})
	}
	return metrics, nil
}

// rangeFlags select an inclusive date range.
type rangeFlags struct {
	from string
	to   string
	days int
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "first date (yyyy-mm-dd)")
	cmd.Flags().StringVar(&f.to, "to", "", "last date (yyyy-mm-dd)")
	cmd.Flags().IntVar(&f.days, "days", 0, "only the last N days")
}

func (f *rangeFlags) dateRange() (domain.DateRange, error) {
	var r domain.DateRange
	var err error
	if f.from != "" {
		if r.From, err = parseDate(f.from); err != nil {
			return r, err
		}
	}
	if f.to != "" {
		if r.To, err = parseDate(f.to); err != nil {
			return r, err
		}
	}
	if f.days < 0 {
		return r, util.InvalidInput("--days must not be negative")
	}
	if f.days > 0 && r.From.IsZero() {
		end := r.To
		if end.IsZero() {
			end = domain.Today()
		}
		r.From = end.AddDays(1 - f.days)
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return r, util.InvalidInput("--to is before --from")
	}
	return r, nil
}
