package utils

import (
	"reflect"
	"testing"
	"time"
)

func TestTaskMonthsFromTaskID(t *testing.T) {
	now := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)

	got := TaskMonths("2025-12-MON-745", nil, 4, now)
	want := []string{"2025-12", "2026-01", "2026-02", "2026-03"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TaskMonths = %v, want %v", got, want)
	}
}

func TestTaskMonthsFromStartDate(t *testing.T) {
	now := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	start := time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC)

	got := TaskMonths("MON-745", &start, 4, now)
	want := []string{"2025-10", "2025-11", "2025-12", "2026-01"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TaskMonths = %v, want %v", got, want)
	}
}

func TestTaskMonthsFallback(t *testing.T) {
	now := time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC)

	// 无月份标记也无开始日期时取未来4个月（不含当月）
	got := TaskMonths("PROMO-001", nil, 4, now)
	want := []string{"2025-12", "2026-01", "2026-02", "2026-03"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TaskMonths = %v, want %v", got, want)
	}
}

func TestTaskMonthsIgnoresInvalidToken(t *testing.T) {
	now := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)

	// 2025-13 不是合法月份，应走开始日期
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	got := TaskMonths("2025-13-XXX", &start, 2, now)
	want := []string{"2025-09", "2025-10"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("TaskMonths = %v, want %v", got, want)
	}
}

func TestNextNMonthsIncludeCurrent(t *testing.T) {
	now := time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)

	got := NextNMonths(now, 3, true)
	want := []string{"2025-12", "2026-01", "2026-02"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NextNMonths = %v, want %v", got, want)
	}
}

func TestParseMonthString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-01", "2025-01"},
		{"2025/01", "2025-01"},
		{"202501", "2025-01"},
		{" 2025-12 ", "2025-12"},
		{"2025-13", ""},
		{"2025-1", ""},
		{"abc", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ParseMonthString(tc.in); got != tc.want {
			t.Errorf("ParseMonthString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMonthFirstDay(t *testing.T) {
	day, ok := MonthFirstDay("2026-02")
	if !ok {
		t.Fatal("MonthFirstDay returned not ok")
	}
	want := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if !day.Equal(want) {
		t.Fatalf("MonthFirstDay = %v, want %v", day, want)
	}

	if _, ok := MonthFirstDay("not-a-month"); ok {
		t.Fatal("MonthFirstDay should fail for invalid input")
	}
}
