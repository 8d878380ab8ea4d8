package session

import "time"

// FormatRelative 以 now 为基准把时间渲染为聊天列表中的相对时间
//
//	同一天       -> "3:45 PM"
//	前一天       -> "Yesterday"
//	2~6 天前     -> 星期名，如 "Tuesday"
//	更早或未来   -> "Mar 14"
//
// 天数按 loc 中的日历日计算，与具体时分无关
func FormatRelative(t, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)

	switch days := calendarDays(t, now.In(loc)); {
	case days == 0:
		return t.Format("3:04 PM")
	case days == 1:
		return "Yesterday"
	case days > 1 && days < 7:
		return t.Weekday().String()
	default:
		return t.Format("Jan 2")
	}
}

// calendarDays now 与 t 之间相差的日历天数（t 在过去时为正）
func calendarDays(t, now time.Time) int {
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	a := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	b := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
