// internal/service/ranking/domain/period.go
package domain

import (
	"fmt"
	"time"
)

// Period 是榜单的时间粒度。
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Key 计算某时刻所属的周期键。写入与读取共用这一个函数,
// 两侧永远落在同一个键上。
//
// 周榜使用 ISO 周历: 键里的年份是 week-based year, 与日历年可能不同
// (例如 2027-01-01 属于 2026 年第 53 周, 键为 2026-W53)。
func (p Period) Key(at time.Time) string {
	switch p {
	case PeriodWeekly:
		year, week := at.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case PeriodMonthly:
		return at.Format("2006-01")
	default:
		return at.Format("2006-01-02")
	}
}

// AllPeriods 返回全部粒度, 一条事件同时计入日/周/月榜。
func AllPeriods() []Period {
	return []Period{PeriodDaily, PeriodWeekly, PeriodMonthly}
}
