package model

import (
	"fmt"
	"strconv"
	"time"
)

// UnixTime marshals as fractional Unix seconds. The original deployment
// wrote Python time.time() floats into every record and progress event;
// consumers (dashboards, the gateway) parse numbers, not RFC 3339.
type UnixTime time.Time

func Now() UnixTime { return UnixTime(time.Now()) }

func NowPtr() *UnixTime {
	t := Now()
	return &t
}

func (u UnixTime) Time() time.Time { return time.Time(u) }

func (u UnixTime) IsZero() bool { return time.Time(u).IsZero() }

func (u UnixTime) MarshalJSON() ([]byte, error) {
	t := time.Time(u)
	if t.IsZero() {
		return []byte("0"), nil
	}
	sec := float64(t.UnixNano()) / float64(time.Second)
	return []byte(strconv.FormatFloat(sec, 'f', 6, 64)), nil
}

func (u *UnixTime) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Tolerate quoted RFC 3339 strings so hand-crafted payloads
		// from curl still parse.
		t, terr := time.Parse(`"`+time.RFC3339+`"`, s)
		if terr != nil {
			return fmt.Errorf("unix time: %v", err)
		}
		*u = UnixTime(t)
		return nil
	}
	if sec == 0 {
		*u = UnixTime(time.Time{})
		return nil
	}
	*u = UnixTime(time.Unix(0, int64(sec*float64(time.Second))))
	return nil
}
