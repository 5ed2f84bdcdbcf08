package analytics

import (
	"sort"
	"time"

	"addrstats/pkg/models"
)

const hoursPerDay = 24

// ComputeStreak 计算连续活跃天数。
//
// 输入顺序任意，内部使用升序私有副本。最近活跃日期为今天或昨天（UTC）时视为
// 活跃，当前连续天数为末尾仍未中断的区间；否则当前连续天数为 0 且起止日期为空。
// 最长连续天数始终返回，长度相同时取最早的区间。
func ComputeStreak(days []models.DailyActivity, now time.Time) models.ActivityStreak {
	if len(days) == 0 {
		return models.ActivityStreak{}
	}

	dates := make([]string, 0, len(days))
	for _, d := range days {
		dates = append(dates, d.Date)
	}
	sort.Strings(dates)

	var (
		longest      = 1
		longestStart = dates[0]
		longestEnd   = dates[0]
		runLength    = 1
		runStart     = dates[0]
	)

	closeRun := func(end string) {
		if runLength > longest {
			longest = runLength
			longestStart = runStart
			longestEnd = end
		}
	}

	for i := 1; i < len(dates); i++ {
		if calendarGap(dates[i-1], dates[i]) == 1 {
			runLength++
			continue
		}
		closeRun(dates[i-1])
		runLength = 1
		runStart = dates[i]
	}
	last := dates[len(dates)-1]
	closeRun(last)

	streak := models.ActivityStreak{
		LongestStreak:      longest,
		LongestStreakStart: stringPtr(longestStart),
		LongestStreakEnd:   stringPtr(longestEnd),
	}

	today := now.UTC().Format(models.DateLayout)
	yesterday := now.UTC().AddDate(0, 0, -1).Format(models.DateLayout)
	if last != today && last != yesterday {
		return streak
	}

	streak.IsActive = true
	streak.CurrentStreak = runLength
	streak.StreakStart = stringPtr(runStart)
	streak.StreakEnd = stringPtr(last)
	return streak
}

// calendarGap 两个 YYYY-MM-DD 日期之间相差的自然日数
func calendarGap(prev, cur string) int {
	p, err := time.ParseInLocation(models.DateLayout, prev, time.UTC)
	if err != nil {
		return 0
	}
	c, err := time.ParseInLocation(models.DateLayout, cur, time.UTC)
	if err != nil {
		return 0
	}
	return int(c.Sub(p).Hours() / hoursPerDay)
}

func stringPtr(s string) *string {
	return &s
}
