// Package schedule keeps exactly one daily crontab entry per registered account.
//
// Entries look like
//
//	17 4 * * * /usr/local/bin/vwbackup backup alice@example.com # vwbackup:alice@example.com
//
// and are located by the trailing tag. Lines without the tag are never touched.
package schedule

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/robfig/cron/v3"

	"github.com/zx06/vwbackup/internal/errors"
)

// Marker tags every line this tool owns.
const Marker = "vwbackup"

const tagPrefix = " # " + Marker + ":"

// Entry is one installed schedule line.
type Entry struct {
	Minute  int    `json:"minute" yaml:"minute"`
	Hour    int    `json:"hour" yaml:"hour"`
	Account string `json:"account" yaml:"account"`
	Command string `json:"command" yaml:"command"`
	Line    string `json:"-" yaml:"-"`
}

// Expr returns the 5-field cron expression of the entry.
func (e Entry) Expr() string {
	return fmt.Sprintf("%d %d * * *", e.Minute, e.Hour)
}

// Next returns the next activation after t.
func (e Entry) Next(t time.Time) (time.Time, error) {
	s, err := cron.ParseStandard(e.Expr())
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(t), nil
}

// String renders the crontab line.
func (e Entry) String() string {
	return e.Expr() + " " + e.Command + tagPrefix + e.Account
}

type Manager struct {
	tab  Crontab
	self string
	args []string
	intn func(n int) int
}

type Option func(*Manager)

// WithArgs adds global flags (e.g. --config) placed before the backup subcommand.
func WithArgs(args ...string) Option {
	return func(m *Manager) { m.args = append(m.args, args...) }
}

// WithRand replaces the random source; intn must return a value in [0,n).
func WithRand(intn func(n int) int) Option {
	return func(m *Manager) { m.intn = intn }
}

func NewManager(tab Crontab, selfBinary string, opts ...Option) *Manager {
	m := &Manager{tab: tab, self: selfBinary, intn: rand.IntN}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Command returns the shell command cron runs for id.
func (m *Manager) Command(id string) string {
	parts := make([]string, 0, len(m.args)+3)
	parts = append(parts, shellescape.Quote(m.self))
	for _, a := range m.args {
		parts = append(parts, shellescape.Quote(a))
	}
	parts = append(parts, "backup", shellescape.Quote(id))
	// cron turns an unescaped % into a newline, even inside quotes
	return strings.ReplaceAll(strings.Join(parts, " "), "%", `\%`)
}

// Schedule installs a daily entry for id at a random time, replacing any
// entry already tagged with id.
func (m *Manager) Schedule(ctx context.Context, id string) (Entry, error) {
	// minute in [0,59), hour in [0,23): the upper bounds are never drawn.
	e := Entry{
		Minute:  m.intn(59),
		Hour:    m.intn(23),
		Account: id,
		Command: m.Command(id),
	}
	if _, err := cron.ParseStandard(e.Expr()); err != nil {
		return Entry{}, errors.Wrap(errors.CodeInternal, "generated invalid schedule", map[string]any{"expr": e.Expr()}, err)
	}
	e.Line = e.String()

	lines, err := m.read(ctx)
	if err != nil {
		return Entry{}, err
	}
	kept := filter(lines, func(l string) bool {
		tag, ok := tagOf(l)
		return !ok || tag != id
	})
	kept = append(kept, e.Line)
	if err := m.write(ctx, kept); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Unschedule removes every entry tagged with id. It reports how many lines
// were removed; zero means the crontab was left untouched.
func (m *Manager) Unschedule(ctx context.Context, id string) (int, error) {
	return m.removeWhere(ctx, func(tag string) bool { return tag == id })
}

// UnscheduleAll removes every entry carrying the marker.
func (m *Manager) UnscheduleAll(ctx context.Context) (int, error) {
	return m.removeWhere(ctx, func(string) bool { return true })
}

// List returns the installed entries carrying the marker, in table order.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	lines, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, l := range lines {
		if e, ok := ParseLine(l); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Manager) removeWhere(ctx context.Context, match func(tag string) bool) (int, error) {
	lines, err := m.read(ctx)
	if err != nil {
		return 0, err
	}
	kept := filter(lines, func(l string) bool {
		tag, ok := tagOf(l)
		return !ok || !match(tag)
	})
	removed := len(lines) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, m.write(ctx, kept)
}

func (m *Manager) read(ctx context.Context) ([]string, error) {
	content, err := m.tab.Read(ctx)
	if err != nil {
		return nil, asScheduleErr(err, "failed to read crontab")
	}
	content = strings.TrimRight(content, "\n")
	if content == "" {
		return nil, nil
	}
	return strings.Split(content, "\n"), nil
}

func (m *Manager) write(ctx context.Context, lines []string) error {
	content := ""
	if len(lines) > 0 {
		// crontab rejects a table whose last line has no newline
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := m.tab.Write(ctx, content); err != nil {
		return asScheduleErr(err, "failed to install crontab")
	}
	return nil
}

func asScheduleErr(err error, msg string) error {
	if errors.HasCode(err, errors.CodeScheduleFailed) {
		return err
	}
	return errors.Wrap(errors.CodeScheduleFailed, msg, nil, err)
}

// ParseLine parses a crontab line owned by this tool.
func ParseLine(line string) (Entry, bool) {
	tag, ok := tagOf(line)
	if !ok {
		return Entry{}, false
	}
	body := line[:strings.LastIndex(line, tagPrefix)]
	fields := strings.Fields(body)
	if len(fields) < 6 {
		return Entry{}, false
	}
	minute, err1 := strconv.Atoi(fields[0])
	hour, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		// hand-edited expression; keep it visible but without a time
		minute, hour = -1, -1
	}
	// the command starts after the 5 time fields
	rest := body
	for i := 0; i < 5; i++ {
		rest = strings.TrimLeft(rest, " \t")
		if j := strings.IndexAny(rest, " \t"); j >= 0 {
			rest = rest[j:]
		}
	}
	return Entry{
		Minute:  minute,
		Hour:    hour,
		Account: tag,
		Command: strings.TrimSpace(rest),
		Line:    line,
	}, true
}

func tagOf(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	i := strings.LastIndex(line, tagPrefix)
	if i < 0 {
		return "", false
	}
	return strings.TrimRight(line[i+len(tagPrefix):], " \t\r"), true
}

func filter(lines []string, keep func(string) bool) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}
