package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultTimezone = "UTC"

// cronParser accepts standard 5-field expressions plus @descriptors.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// OverlapPolicy controls what happens when a trigger fires while a previous
// run is still open.
type OverlapPolicy string

const (
	OverlapAllowAll    OverlapPolicy = "allow-all"
	OverlapSkip        OverlapPolicy = "skip"
	OverlapBufferOne   OverlapPolicy = "buffer-one"
	OverlapBufferAll   OverlapPolicy = "buffer-all"
	OverlapCancelOther OverlapPolicy = "cancel-other"
)

func (p OverlapPolicy) valid() bool {
	switch p {
	case OverlapAllowAll, OverlapSkip, OverlapBufferOne, OverlapBufferAll, OverlapCancelOther:
		return true
	}
	return false
}

var (
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrDuplicateSchedule = errors.New("schedule id already registered")
	ErrInvalidTrigger    = errors.New("exactly one of cron expression or interval is required")
	ErrOverlapSkipped    = errors.New("trigger skipped while a previous run is in flight")
)

// Binding declares a scheduled workflow trigger.
type Binding struct {
	ScheduleID     string         `json:"schedule_id"`
	WorkflowName   string         `json:"workflow_name"`
	TaskQueue      string         `json:"task_queue,omitempty"`
	CronExpression string         `json:"cron_expression,omitempty"`
	Interval       time.Duration  `json:"interval,omitempty"`
	Timezone       string         `json:"timezone,omitempty"`
	OverlapPolicy  OverlapPolicy  `json:"overlap_policy,omitempty"`
	Args           []any          `json:"-"`
	Memo           map[string]any `json:"memo,omitempty"`
	// AutoStart leaves the schedule paused when false. Default is active.
	AutoStart *bool `json:"auto_start,omitempty"`
}

func (b *Binding) validate() error {
	if b.ScheduleID == "" {
		return fmt.Errorf("schedule id is required")
	}
	if b.WorkflowName == "" {
		return fmt.Errorf("workflow name is required for schedule %s", b.ScheduleID)
	}
	hasCron := b.CronExpression != ""
	hasInterval := b.Interval > 0
	if hasCron == hasInterval {
		return fmt.Errorf("%w: schedule %s", ErrInvalidTrigger, b.ScheduleID)
	}
	if hasCron {
		if err := ValidateCronExpression(b.CronExpression); err != nil {
			return err
		}
	}
	if b.Timezone != "" {
		if _, err := time.LoadLocation(b.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q for schedule %s: %w", b.Timezone, b.ScheduleID, err)
		}
	}
	if b.OverlapPolicy != "" && !b.OverlapPolicy.valid() {
		return fmt.Errorf("invalid overlap policy %q for schedule %s", b.OverlapPolicy, b.ScheduleID)
	}
	return nil
}

// ValidateCronExpression accepts standard 5-field expressions, @descriptors
// and @every durations.
func ValidateCronExpression(expr string) error {
	if after, ok := strings.CutPrefix(expr, "@every "); ok {
		if _, err := time.ParseDuration(after); err != nil {
			return fmt.Errorf("invalid @every duration %q: %w", after, err)
		}
		return nil
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// nextRun computes the next fire time for the binding after the given moment.
func (b *Binding) nextRun(after time.Time) (time.Time, error) {
	if b.Interval > 0 {
		return after.Add(b.Interval), nil
	}
	loc := time.UTC
	if b.Timezone != "" {
		l, err := time.LoadLocation(b.Timezone)
		if err != nil {
			return time.Time{}, err
		}
		loc = l
	}
	expr := b.CronExpression
	if durStr, ok := strings.CutPrefix(expr, "@every "); ok {
		d, err := time.ParseDuration(durStr)
		if err != nil {
			return time.Time{}, err
		}
		return after.Add(d), nil
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after.In(loc)), nil
}

// Snapshot is the observable state of a registered schedule.
type Snapshot struct {
	Binding       Binding    `json:"binding"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	NextRun       *time.Time `json:"next_run,omitempty"`
	TriggerCount  int        `json:"trigger_count"`
	LastError     string     `json:"last_error,omitempty"`
}

// Stats summarizes the registry for health reporting.
type Stats struct {
	Total         int `json:"total"`
	Active        int `json:"active"`
	Paused        int `json:"paused"`
	TotalTriggers int `json:"total_triggers"`
	Errored       int `json:"errored"`
}
