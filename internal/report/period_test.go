package report

import (
	"testing"
	"time"
)

var periodNow = time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

func TestResolveWindowWeekly(t *testing.T) {
	window, err := ResolveWindow(PeriodWeekly, time.Time{}, time.Time{}, periodNow, "")
	if err != nil {
		t.Fatalf("ResolveWindow: %v", err)
	}
	if !window.Start.Equal(periodNow.AddDate(0, 0, -7)) {
		t.Fatalf("unexpected start %s", window.Start)
	}
	if window.FileName != "weekly_2026-08-28.pdf" {
		t.Fatalf("unexpected filename %s", window.FileName)
	}
	if window.Title != "Weekly Status Report - Week 35" {
		t.Fatalf("unexpected title %s", window.Title)
	}
}

func TestResolveWindowTagSuffix(t *testing.T) {
	window, err := ResolveWindow(PeriodDaily, time.Time{}, time.Time{}, periodNow, "infra")
	if err != nil {
		t.Fatalf("ResolveWindow: %v", err)
	}
	if window.FileName != "daily_2026-08-28_infra.pdf" {
		t.Fatalf("unexpected filename %s", window.FileName)
	}
}

func TestResolveWindowCustom(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	window, err := ResolveWindow(PeriodCustom, start, end, periodNow, "")
	if err != nil {
		t.Fatalf("ResolveWindow: %v", err)
	}
	if window.Title != "Status Report - 2026-07-01 to 2026-07-31" {
		t.Fatalf("unexpected title %s", window.Title)
	}
	if window.FileName != "report_2026-07-01_to_2026-07-31.pdf" {
		t.Fatalf("unexpected filename %s", window.FileName)
	}
}

func TestResolveWindowCustomRequiresDates(t *testing.T) {
	if _, err := ResolveWindow(PeriodCustom, time.Time{}, periodNow, periodNow, ""); err == nil {
		t.Fatal("expected error for custom period without start date")
	}
}

func TestResolveWindowRejectsInvertedRange(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if _, err := ResolveWindow(PeriodCustom, start, end, periodNow, ""); err == nil {
		t.Fatal("expected error for end before start")
	}
}

func TestParsePeriod(t *testing.T) {
	if _, err := ParsePeriod("weekly"); err != nil {
		t.Fatalf("ParsePeriod(weekly): %v", err)
	}
	if _, err := ParsePeriod("fortnightly"); err == nil {
		t.Fatal("expected error for unknown period")
	}
}
