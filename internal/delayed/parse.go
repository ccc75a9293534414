package delayed

import (
	"errors"
	"strings"
	"time"
)

// ParseFireTime parses an operator-entered fire time in one of three
// forms, all interpreted in now's location:
//
//	"15:04" or "15:04:05"                - today, rolled to tomorrow if past
//	"02.01 15:04" or "02.01 15:04:05"    - current year, rolled to next year if past
//	"02.01.2006 15:04[:05]"              - absolute
func ParseFireTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	loc := now.Location()

	switch strings.Count(s, ".") {
	case 0:
		layout := "15:04"
		if strings.Count(s, ":") == 2 {
			layout = "15:04:05"
		}
		tm, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, errors.New("invalid time, expected HH:MM or HH:MM:SS")
		}
		t := time.Date(now.Year(), now.Month(), now.Day(), tm.Hour(), tm.Minute(), tm.Second(), 0, loc)
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil

	case 1:
		layout := "02.01 15:04"
		if strings.Count(s, ":") == 2 {
			layout = "02.01 15:04:05"
		}
		tm, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, errors.New("invalid date, expected DD.MM HH:MM or DD.MM HH:MM:SS")
		}
		t := time.Date(now.Year(), tm.Month(), tm.Day(), tm.Hour(), tm.Minute(), tm.Second(), 0, loc)
		if !t.After(now) {
			t = t.AddDate(1, 0, 0)
		}
		return t, nil

	case 2:
		layout := "02.01.2006 15:04"
		if strings.Count(s, ":") == 2 {
			layout = "02.01.2006 15:04:05"
		}
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, errors.New("invalid date, expected DD.MM.YYYY HH:MM or DD.MM.YYYY HH:MM:SS")
		}
		return t, nil
	}
	return time.Time{}, errors.New("unrecognized date/time format")
}
