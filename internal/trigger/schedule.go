package trigger

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// Schedule is a parsed trigger schedule: either a 5-field cron spec or a
// fixed interval.
type Schedule struct {
	Kind   SpecKind
	Source string // "cron" or "duration"

	cronSched cron.Schedule
	Every     time.Duration
}

// ParseSchedule accepts:
//   - "cron:<spec>" or a bare 5-field cron spec ("*/5 * * * *")
//   - "interval:<dur>" or a bare Go duration ("2m", "45s")
func ParseSchedule(raw string) (Schedule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Schedule{}, fmt.Errorf("empty schedule")
	}

	if rest, ok := strings.CutPrefix(raw, "cron:"); ok {
		return parseCron(rest)
	}
	if rest, ok := strings.CutPrefix(raw, "interval:"); ok {
		return parseInterval(rest)
	}

	if d, err := time.ParseDuration(raw); err == nil {
		return intervalSchedule(d)
	}
	if s, err := parseCron(raw); err == nil {
		return s, nil
	}
	return Schedule{}, fmt.Errorf("unrecognized schedule %q (want cron spec or duration)", raw)
}

func parseCron(spec string) (Schedule, error) {
	sched, err := cron.ParseStandard(strings.TrimSpace(spec))
	if err != nil {
		return Schedule{}, fmt.Errorf("cron spec: %w", err)
	}
	return Schedule{Kind: SpecCron, Source: "cron", cronSched: sched}, nil
}

func parseInterval(s string) (Schedule, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return Schedule{}, fmt.Errorf("interval: %w", err)
	}
	return intervalSchedule(d)
}

func intervalSchedule(d time.Duration) (Schedule, error) {
	if d < time.Second {
		return Schedule{}, fmt.Errorf("interval %s too short (min 1s)", d)
	}
	return Schedule{Kind: SpecInterval, Source: "duration", Every: d}, nil
}

// Next returns the next fire time strictly after t.
func (s Schedule) Next(t time.Time) time.Time {
	if s.Kind == SpecCron {
		return s.cronSched.Next(t)
	}
	return t.Add(s.Every)
}
