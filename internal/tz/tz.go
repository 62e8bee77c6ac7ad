// Package tz переводит локальное время инспекции в UTC и обратно.
package tz

import (
	"strings"
	"time"
	// База поясов внутри бинарника: в минимальных образах её нет.
	_ "time/tzdata"
)

// Resolve возвращает пояс по IANA id. Пустой или неизвестный id даёт UTC.
func Resolve(id string) *time.Location {
	id = strings.TrimSpace(id)
	if id == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Valid сообщает, известен ли пояс.
func Valid(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	_, err := time.LoadLocation(id)
	return err == nil
}

// ToUTC трактует "настенные" поля local как время в loc.
func ToUTC(local time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), loc).UTC()
}

func FromUTC(utc time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return utc.In(loc)
}

// PtrToUTC — то же для опциональных значений.
func PtrToUTC(local *time.Time, loc *time.Location) *time.Time {
	if local == nil {
		return nil
	}
	t := ToUTC(*local, loc)
	return &t
}
