package model

import (
	"errors"
	"strings"
	"time"
)

const MonthLayout = "2006-01"

var ErrInvalidMonth = errors.New("invalid month, expected YYYY-MM")

// Month is a calendar year-month, the aggregation key for summaries and insights.
type Month struct {
	Year  int
	Month time.Month
}

func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return Month{}, ErrInvalidMonth
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) String() string {
	return m.FirstDay().Time().Format(MonthLayout)
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m Month) Prev() Month {
	return MonthOf(m.FirstDay().Time().AddDate(0, -1, 0))
}

func (m Month) Next() Month {
	return MonthOf(m.FirstDay().Time().AddDate(0, 1, 0))
}

func (m Month) FirstDay() Date {
	return Date{Year: m.Year, Month: m.Month, Day: 1}
}

func (m Month) LastDay() Date {
	return DateOf(m.Next().FirstDay().Time().AddDate(0, 0, -1))
}

func (m Month) Days() int {
	return m.LastDay().Day
}

func (m Month) Contains(d Date) bool {
	return d.Year == m.Year && d.Month == m.Month
}

func (m Month) Before(o Month) bool {
	return m.Year < o.Year || (m.Year == o.Year && m.Month < o.Month)
}
