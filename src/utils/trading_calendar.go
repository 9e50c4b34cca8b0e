package utils

import (
	"strings"
	"time"

	"bot-mirror/src/logger"

	"github.com/scmhub/calendar"
)

// TradingCalendar tells whether the exchange the bot trades on is in session.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// GetCalendar loads the calendar for an ISO 10383 MIC (xnse, xbom). Unknown
// MICs fall back to a Mon-Fri 09:15-15:30 IST session.
func GetCalendar(mic string, log *logger.Logger) *TradingCalendar {
	mic = strings.ToLower(strings.TrimSpace(mic))
	if mic == "" {
		mic = "xnse"
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil && mic != "xbom" {
		cal = calendar.GetCalendar("xbom")
	}

	if cal == nil {
		if log != nil {
			log.Warning("Failed to load calendar for MIC '%s'. Using simple fallback (Mon-Fri 09:15-15:30 IST).", mic)
		}
		ist, _ := time.LoadLocation("Asia/Kolkata")
		if ist == nil {
			ist = time.FixedZone("IST", 5*3600+30*60)
		}
		return &TradingCalendar{Fallback: true, Timezone: ist}
	}

	return &TradingCalendar{Calendar: cal, Fallback: false, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}
		minutes := t.Hour()*60 + t.Minute()
		return minutes >= 9*60+15 && minutes < 15*60+30
	}

	return tc.Calendar.IsOpen(t)
}
