package hours

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

func testEngine() *Engine {
	return NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// monday returns a fixed Monday at the given hour and minute.
func monday(hour, minute int) time.Time {
	return time.Date(2025, 3, 3, hour, minute, 0, 0, time.UTC)
}

func calendarPOI(tokens string) types.POIDetailedInfo {
	return types.POIDetailedInfo{ID: uuid.New(), Name: "Cafe Central", OpeningHoursCalendar: tokens}
}

func stringPOI(hours map[string]string) types.POIDetailedInfo {
	return types.POIDetailedInfo{ID: uuid.New(), Name: "Cafe Central", OpeningHours: hours}
}

func TestIsCurrentlyOpen_CalendarFormat(t *testing.T) {
	e := testEngine()
	poi := calendarPOI("Mo:8:closed;Mo:9:open;Mo:10:open;Mo:11:open")

	assert.False(t, e.IsCurrentlyOpen(poi, monday(8, 30)))
	assert.True(t, e.IsCurrentlyOpen(poi, monday(9, 0)))
	assert.True(t, e.IsCurrentlyOpen(poi, monday(11, 59)))
	// Hours the calendar never mentions are unknown, not open.
	assert.False(t, e.IsCurrentlyOpen(poi, monday(12, 0)))
}

func TestIsCurrentlyOpen_StringFormat(t *testing.T) {
	e := testEngine()
	poi := stringPOI(map[string]string{"monday": "9 AM to 5 PM"})

	tests := []struct {
		name string
		now  time.Time
		open bool
	}{
		{"before opening", monday(8, 59), false},
		{"at opening hour", monday(9, 0), true},
		{"midday", monday(14, 0), true},
		{"last open hour", monday(16, 59), true},
		{"at closing hour", monday(17, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.open, e.IsCurrentlyOpen(poi, tt.now))
		})
	}
}

func TestIsCurrentlyOpen_ClosedDayAndAllDay(t *testing.T) {
	e := testEngine()

	closed := stringPOI(map[string]string{"monday": "Closed"})
	assert.False(t, e.IsCurrentlyOpen(closed, monday(12, 0)))

	allDay := stringPOI(map[string]string{"monday": "Open 24 hours"})
	assert.True(t, e.IsCurrentlyOpen(allDay, monday(0, 0)))
	assert.True(t, e.IsCurrentlyOpen(allDay, monday(23, 30)))
}

func TestIsCurrentlyOpen_MultiplePeriods(t *testing.T) {
	e := testEngine()
	poi := stringPOI(map[string]string{"monday": "9 AM to 12 PM; 2 PM to 6 PM"})

	assert.True(t, e.IsCurrentlyOpen(poi, monday(10, 0)))
	assert.False(t, e.IsCurrentlyOpen(poi, monday(13, 0)))
	assert.True(t, e.IsCurrentlyOpen(poi, monday(15, 0)))
	assert.False(t, e.IsCurrentlyOpen(poi, monday(18, 0)))
}

func TestIsCurrentlyOpen_BadPeriodDiscardedOthersKept(t *testing.T) {
	e := testEngine()
	poi := stringPOI(map[string]string{"monday": "garbage to nonsense; 2 PM to 6 PM"})

	assert.False(t, e.IsCurrentlyOpen(poi, monday(10, 0)))
	assert.True(t, e.IsCurrentlyOpen(poi, monday(15, 0)))
}

func TestCalendarWinsOverStrings(t *testing.T) {
	e := testEngine()
	poi := types.POIDetailedInfo{
		ID:                   uuid.New(),
		OpeningHoursCalendar: "Mo:10:closed",
		OpeningHours:         map[string]string{"monday": "9 AM to 5 PM"},
	}

	assert.False(t, e.IsCurrentlyOpen(poi, monday(10, 0)))
	// Where the calendar is silent, the strings still answer.
	assert.True(t, e.IsCurrentlyOpen(poi, monday(11, 0)))
}

func TestIsClosingSoonAndOpeningSoon(t *testing.T) {
	e := testEngine()
	poi := stringPOI(map[string]string{"monday": "9 AM to 5 PM"})

	assert.False(t, e.IsClosingSoon(poi, monday(14, 0)))
	// 16:30 -> next hour boundary is 17:30, hour 17 is closed.
	assert.True(t, e.IsClosingSoon(poi, monday(16, 30)))

	assert.True(t, e.IsOpeningSoon(poi, monday(8, 30)))
	assert.False(t, e.IsOpeningSoon(poi, monday(10, 0)))
}

func TestNextOpeningTime(t *testing.T) {
	e := testEngine()
	poi := stringPOI(map[string]string{
		"monday":  "9 AM to 5 PM",
		"tuesday": "9 AM to 5 PM",
	})

	assert.Equal(t, "today at 9 AM", e.NextOpeningTime(poi, monday(6, 0)))
	assert.Equal(t, "Tuesday at 9 AM", e.NextOpeningTime(poi, monday(20, 0)))

	alwaysClosed := stringPOI(map[string]string{"monday": "Closed"})
	assert.Equal(t, "unknown", e.NextOpeningTime(alwaysClosed, monday(6, 0)))
}

func TestGetOpeningStatus(t *testing.T) {
	e := testEngine()
	poi := stringPOI(map[string]string{
		"monday":  "9 AM to 5 PM",
		"tuesday": "9 AM to 5 PM",
	})

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"open midday", monday(14, 0), "Open now"},
		{"closing soon", monday(16, 30), "Open now, closing soon (around 5 PM)"},
		{"opening soon", monday(8, 30), "Closed now, opening soon (around 9 AM)"},
		{"closed until next day", monday(20, 0), "Closed now, opens Tuesday at 9 AM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.GetOpeningStatus(poi, tt.now))
		})
	}
}

func TestGetOpeningStatus_NoScheduleData(t *testing.T) {
	e := testEngine()

	assert.Equal(t, StatusUnavailable, e.GetOpeningStatus(types.POIDetailedInfo{ID: uuid.New()}, monday(12, 0)))

	unknownOnly := stringPOI(map[string]string{"monday": ""})
	assert.Equal(t, StatusUnavailable, e.GetOpeningStatus(unknownOnly, monday(12, 0)))

	closedAllWeek := stringPOI(map[string]string{"monday": "Closed"})
	assert.Equal(t, "Closed now, next opening time unknown", e.GetOpeningStatus(closedAllWeek, monday(12, 0)))
}

func TestFormatHour(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "12 AM"},
		{1, "1 AM"},
		{11, "11 AM"},
		{12, "12 PM"},
		{13, "1 PM"},
		{23, "11 PM"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatHour(tt.hour))
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"9 AM", 9, true},
		{"9:30am", 9, true},
		{"5 PM", 17, true},
		{"12 PM", 12, true},
		{"12 AM", 0, true},
		{"17:00", 17, true},
		{"noonish", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseClock(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}
