package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Schedule is a structured recurring trigger. Exactly one shape applies:
// MinuteInterval > 0 fires every N minutes; otherwise the job fires at Minute
// past every hour (Hour < 0) or once a day at Hour:Minute UTC.
type Schedule struct {
	MinuteInterval int `json:"minute_interval,omitempty"`
	Minute         int `json:"minute"`
	Hour           int `json:"hour"`
}

// EveryMinutes fires every n minutes, aligned to the hour.
func EveryMinutes(n int) Schedule {
	return Schedule{MinuteInterval: n, Hour: -1}
}

// Hourly fires once an hour at the given minute.
func Hourly(minute int) Schedule {
	return Schedule{Minute: minute, Hour: -1}
}

// Daily fires once a day at hour:minute UTC.
func Daily(hour, minute int) Schedule {
	return Schedule{Minute: minute, Hour: hour}
}

// CronExpr renders the schedule as a standard five-field cron expression.
func (s Schedule) CronExpr() string {
	switch {
	case s.MinuteInterval > 0:
		return fmt.Sprintf("*/%d * * * *", s.MinuteInterval)
	case s.Hour < 0:
		return fmt.Sprintf("%d * * * *", s.Minute)
	default:
		return fmt.Sprintf("%d %d * * *", s.Minute, s.Hour)
	}
}

func (s Schedule) String() string {
	return s.CronExpr()
}

// Validate checks field ranges and that the rendered expression parses.
func (s Schedule) Validate() error {
	if s.MinuteInterval < 0 || s.MinuteInterval > 59 {
		return fmt.Errorf("minute interval %d out of range 0-59", s.MinuteInterval)
	}
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("minute %d out of range 0-59", s.Minute)
	}
	if s.Hour < -1 || s.Hour > 23 {
		return fmt.Errorf("hour %d out of range 0-23 (or -1 for every hour)", s.Hour)
	}

	if _, err := cron.ParseStandard(s.CronExpr()); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.CronExpr(), err)
	}
	return nil
}
