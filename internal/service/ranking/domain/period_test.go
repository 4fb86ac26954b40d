// internal/service/ranking/domain/period_test.go
package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestPeriodKey(t *testing.T) {
	cases := []struct {
		name   string
		period Period
		at     time.Time
		want   string
	}{
		{"daily", PeriodDaily, date(2026, time.March, 5), "2026-03-05"},
		{"monthly", PeriodMonthly, date(2026, time.March, 5), "2026-03"},
		{"weekly mid-year", PeriodWeekly, date(2026, time.July, 15), "2026-W29"},
		// ISO 周历: 2027-01-01 (周五) 仍属 2026 年第 53 周
		{"weekly year boundary", PeriodWeekly, date(2027, time.January, 1), "2026-W53"},
		// 2024-12-30 (周一) 已经属于 2025 年第 1 周
		{"weekly early week of next year", PeriodWeekly, date(2024, time.December, 30), "2025-W01"},
		{"weekly single digit padded", PeriodWeekly, date(2026, time.January, 20), "2026-W04"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.period.Key(tc.at))
		})
	}
}

func TestPeriodKey_WeeklyYearDiffersFromCalendarYear(t *testing.T) {
	// 跨年周里日榜/月榜键用日历年, 周榜键用 week-based year,
	// 同一时刻两者允许出现不同年份
	at := date(2027, time.January, 1)
	assert.Equal(t, "2027-01-01", PeriodDaily.Key(at))
	assert.Equal(t, "2027-01", PeriodMonthly.Key(at))
	assert.Equal(t, "2026-W53", PeriodWeekly.Key(at))
}

func TestAllPeriods(t *testing.T) {
	assert.Equal(t, []Period{PeriodDaily, PeriodWeekly, PeriodMonthly}, AllPeriods())
}
