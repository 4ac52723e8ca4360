package report

import (
	"fmt"
	"time"
)

// Period selects the reporting window ending at the reference date.
type Period string

const (
	PeriodDaily    Period = "daily"
	PeriodWeekly   Period = "weekly"
	PeriodBiweekly Period = "biweekly"
	PeriodMonthly  Period = "monthly"
	PeriodYearly   Period = "yearly"
	PeriodCustom   Period = "custom"
)

// Window is a resolved reporting interval plus its presentation strings.
type Window struct {
	Start    time.Time
	End      time.Time
	Title    string
	FileName string
}

// ParsePeriod validates a period name.
func ParsePeriod(name string) (Period, error) {
	switch Period(name) {
	case PeriodDaily, PeriodWeekly, PeriodBiweekly, PeriodMonthly, PeriodYearly, PeriodCustom:
		return Period(name), nil
	}
	return "", fmt.Errorf("unknown report period %q", name)
}

// ResolveWindow computes the report interval. For PeriodCustom both start and
// end must be non-zero; for the named periods end defaults to now.
func ResolveWindow(period Period, start, end, now time.Time, tagSuffix string) (Window, error) {
	suffix := ""
	if tagSuffix != "" {
		suffix = "_" + tagSuffix
	}

	if period == PeriodCustom {
		if start.IsZero() || end.IsZero() {
			return Window{}, fmt.Errorf("custom period requires start and end dates")
		}
		if end.Before(start) {
			return Window{}, fmt.Errorf("report end %s precedes start %s",
				end.Format("2006-01-02"), start.Format("2006-01-02"))
		}
		return Window{
			Start: start,
			End:   end,
			Title: fmt.Sprintf("Status Report - %s to %s",
				start.Format("2006-01-02"), end.Format("2006-01-02")),
			FileName: fmt.Sprintf("report_%s_to_%s%s.pdf",
				start.Format("2006-01-02"), end.Format("2006-01-02"), suffix),
		}, nil
	}

	if end.IsZero() {
		end = now
	}
	day := end.Format("2006-01-02")
	_, week := end.ISOWeek()

	switch period {
	case PeriodDaily:
		return Window{
			Start:    end.AddDate(0, 0, -1),
			End:      end,
			Title:    fmt.Sprintf("Daily Status Report - %s", day),
			FileName: fmt.Sprintf("daily_%s%s.pdf", day, suffix),
		}, nil
	case PeriodWeekly:
		return Window{
			Start:    end.AddDate(0, 0, -7),
			End:      end,
			Title:    fmt.Sprintf("Weekly Status Report - Week %d", week),
			FileName: fmt.Sprintf("weekly_%s%s.pdf", day, suffix),
		}, nil
	case PeriodBiweekly:
		return Window{
			Start:    end.AddDate(0, 0, -14),
			End:      end,
			Title:    fmt.Sprintf("Biweekly Status Report - Weeks %d & %d", week-1, week),
			FileName: fmt.Sprintf("biweekly_%s%s.pdf", day, suffix),
		}, nil
	case PeriodMonthly:
		return Window{
			Start:    end.AddDate(0, 0, -30),
			End:      end,
			Title:    fmt.Sprintf("Monthly Status Report - %s", end.Format("January 2006")),
			FileName: fmt.Sprintf("monthly_%s%s.pdf", day, suffix),
		}, nil
	case PeriodYearly:
		return Window{
			Start:    end.AddDate(0, 0, -365),
			End:      end,
			Title:    fmt.Sprintf("Yearly Status Report - %d", end.Year()),
			FileName: fmt.Sprintf("yearly_%s%s.pdf", day, suffix),
		}, nil
	}
	return Window{}, fmt.Errorf("unknown report period %q", period)
}
