// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package lunar renders the Chinese lunar calendar date, solar term and
// festivals for a day.
package lunar

import (
	"container/list"
	"context"
	"strings"
	"time"

	"github.com/6tail/lunar-go/calendar"
)

// chinaTZ is the zone the calendar is computed in.
var chinaTZ = time.FixedZone("CST", 8*60*60)

// Day is the calendar information of one day.
type Day struct {
	Date      time.Time
	Year      string // 二〇二五
	GanZhi    string // 乙巳
	Zodiac    string // 蛇
	Month     string // 八月, 闰六月
	DayOfMon  string // 十五
	SolarTerm string // empty unless the day is a solar term
	Festivals []string
	Other     []string // traditional lunar festivals that are not holidays
}

// Lookup returns the calendar information for t, taken in China Standard
// Time.
func Lookup(t time.Time) Day {
	t = t.In(chinaTZ)
	solar := calendar.NewSolarFromDate(t)
	l := solar.GetLunar()

	d := Day{
		Date:      t,
		Year:      l.GetYearInChinese(),
		GanZhi:    l.GetYearInGanZhi(),
		Zodiac:    l.GetYearShengXiao(),
		Month:     l.GetMonthInChinese() + "月",
		DayOfMon:  l.GetDayInChinese(),
		SolarTerm: l.GetJieQi(),
	}
	d.Festivals = append(strs(solar.GetFestivals()), strs(l.GetFestivals())...)
	d.Other = strs(l.GetOtherFestivals())
	return d
}

func strs(l *list.List) []string {
	if l == nil {
		return nil
	}
	var ss []string
	for e := l.Front(); e != nil; e = e.Next() {
		if s, ok := e.Value.(string); ok && s != "" {
			ss = append(ss, s)
		}
	}
	return ss
}

// String renders d as the lunar section.
func (d Day) String() string {
	var sb strings.Builder
	sb.WriteString("日期: " + d.Date.Format(time.DateOnly) + "\n")
	sb.WriteString("农历: " + d.Year + " " + d.GanZhi + "[" + d.Zodiac + "]年 " + d.Month + d.DayOfMon + "\n")
	if d.SolarTerm != "" {
		sb.WriteString("节气: " + d.SolarTerm + "\n")
	}
	if len(d.Festivals) > 0 {
		sb.WriteString("法定节假日: " + strings.Join(d.Festivals, "、") + "\n")
	}
	if len(d.Other) > 0 {
		sb.WriteString("农历节假日: " + strings.Join(d.Other, "、") + "\n")
	}
	return sb.String()
}

// Producer renders today's calendar information.
type Producer struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Produce implements content.Producer. It never fails.
func (p Producer) Produce(context.Context) (string, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return Lookup(now()).String(), nil
}
