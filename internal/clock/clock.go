// Package clock maps simulation ticks onto simulated calendar time.
// 1 real hour = 1 simulated day at 50ms/tick and 72000 ticks/day.
package clock

import (
	"errors"
	"fmt"
	"time"
)

const msPerDay = 86_400_000

// ErrBadDate is returned for date strings that are not strict YYYY-MM-DD.
var ErrBadDate = errors.New("invalid date")

// SimClock advances simulated epoch-milliseconds one tick at a time. The
// reference rate fixes what "normal speed" means so that tickScale can make
// stochastic rates invariant to the actual tick rate.
type SimClock struct {
	startTimeMs  int64
	simTimeMs    int64
	ticksPerDay  int
	referenceTPD int
	tickInDay    int
	totalTicks   uint64
}

func New() *SimClock {
	return &SimClock{ticksPerDay: 72000, referenceTPD: 72000}
}

// Initialize fixes the start date and tick budget and resets all counters.
func (c *SimClock) Initialize(startDate string, ticksPerDay int) error {
	start, err := ParseDate(startDate)
	if err != nil {
		return err
	}
	c.ticksPerDay = ticksPerDay
	c.referenceTPD = ticksPerDay
	c.startTimeMs = start
	c.simTimeMs = start
	c.tickInDay = 0
	c.totalTicks = 0
	return nil
}

// Tick advances one tick and returns the new simulated timestamp.
func (c *SimClock) Tick() int64 {
	c.totalTicks++
	c.tickInDay++
	if c.tickInDay >= c.ticksPerDay {
		c.tickInDay = 0
	}
	c.simTimeMs += int64(c.SimMsPerTick())
	return c.simTimeMs
}

// TickScale is the time compression factor relative to the reference rate.
// Coarser ticks (fewer per day) give a scale > 1 so that per-tick
// probabilities, noise variances and decay rates stay calibrated.
func (c *SimClock) TickScale() float64 {
	return float64(c.referenceTPD) / float64(c.ticksPerDay)
}

// SetTicksPerDay switches the tick budget without touching the reference
// rate. Used by populate to run coarse ticks.
func (c *SimClock) SetTicksPerDay(tpd int) { c.ticksPerDay = tpd }

// SetReferenceTicksPerDay pins the reference rate. Populate pins it to the
// active rate so tickScale stays 1 during backfill, then restores it.
func (c *SimClock) SetReferenceTicksPerDay(tpd int) { c.referenceTPD = tpd }

func (c *SimClock) TicksPerDay() int          { return c.ticksPerDay }
func (c *SimClock) ReferenceTicksPerDay() int { return c.referenceTPD }
func (c *SimClock) SimTime() int64            { return c.simTimeMs }
func (c *SimClock) StartTime() int64          { return c.startTimeMs }
func (c *SimClock) TickInDay() int            { return c.tickInDay }
func (c *SimClock) TotalTicks() uint64        { return c.totalTicks }

// SetSimTime restores the simulated time directly.
func (c *SimClock) SetSimTime(ms int64) { c.simTimeMs = ms }

// IsNewDay reports whether the last Tick rolled into a new simulated day.
func (c *SimClock) IsNewDay() bool {
	return c.tickInDay == 0 && c.totalTicks > 0
}

// SimMsPerTick spreads one simulated day over the tick budget.
func (c *SimClock) SimMsPerTick() float64 {
	return float64(msPerDay) / float64(c.ticksPerDay)
}

// CurrentDateString formats the simulated time as YYYY-MM-DD.
func (c *SimClock) CurrentDateString() string { return FormatDate(c.simTimeMs) }

// CurrentDateTimeString formats the simulated time as an ISO datetime.
func (c *SimClock) CurrentDateTimeString() string { return FormatDateTime(c.simTimeMs) }

// ParseDate parses strict "YYYY-MM-DD" into epoch milliseconds, with the
// time-of-day pinned to the 09:30 UTC market open.
func ParseDate(dateStr string) (int64, error) {
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadDate, dateStr)
	}
	open := day.Add(9*time.Hour + 30*time.Minute)
	return open.UnixMilli(), nil
}

// FormatDate renders epoch milliseconds as YYYY-MM-DD (UTC).
func FormatDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}

// FormatDateTime renders epoch milliseconds as an ISO datetime (UTC).
func FormatDateTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05Z")
}
