package utils

import (
	"regexp"
	"strings"
	"time"
)

var monthTokenRe = regexp.MustCompile(`(\d{4})-(0[1-9]|1[0-2])`)

// NextNMonths 未来N个月的月份列表（YYYY-MM）
func NextNMonths(now time.Time, n int, includeCurrent bool) []string {
	startOffset := 1
	if includeCurrent {
		startOffset = 0
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	months := make([]string, 0, n)
	for i := startOffset; i < startOffset+n; i++ {
		months = append(months, first.AddDate(0, i, 0).Format("2006-01"))
	}
	return months
}

// MonthsFrom 从指定月份起连续N个月（含起始月）
func MonthsFrom(start string, n int) []string {
	t, err := time.Parse("2006-01", start)
	if err != nil {
		return nil
	}
	months := make([]string, 0, n)
	for i := 0; i < n; i++ {
		months = append(months, t.AddDate(0, i, 0).Format("2006-01"))
	}
	return months
}

// TaskMonths 推导任务的计划月份窗口
// 优先级：任务ID内嵌的 YYYY-MM 标记 > 任务开始日期所在月 > 未来N个月（不含当月）。
func TaskMonths(taskID string, startDate *time.Time, n int, now time.Time) []string {
	if token := monthTokenRe.FindString(taskID); token != "" {
		return MonthsFrom(token, n)
	}
	if startDate != nil && !startDate.IsZero() {
		return MonthsFrom(startDate.Format("2006-01"), n)
	}
	return NextNMonths(now, n, false)
}

// MonthFirstDay 月份字符串对应的当月一号
func MonthFirstDay(month string) (time.Time, bool) {
	normalized := ParseMonthString(month)
	if normalized == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01", normalized)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseMonthString 解析月份字符串为标准 YYYY-MM 格式
// 支持 2025-01、2025/01、202501 三种写法，解析失败返回空串。
func ParseMonthString(month string) string {
	s := strings.TrimSpace(strings.ReplaceAll(month, "/", "-"))
	if len(s) == 6 && isDigits(s) {
		s = s[:4] + "-" + s[4:]
	}
	if monthTokenRe.FindString(s) == s && len(s) == 7 {
		return s
	}
	return ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
