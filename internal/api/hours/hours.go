package hours

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

// Engine answers availability questions about a POI's opening hours. All
// queries take an explicit "now" so the engine stays a pure computation over
// its inputs. It never returns errors: missing or unparseable schedules
// degrade to "unknown" answers.
type Engine struct {
	logger *slog.Logger
}

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// StatusUnavailable is the user-facing degradation when no schedule could be
// parsed for a POI.
const StatusUnavailable = "Opening hours not available"

// hourState is the tri-state answer for one weekday+hour slot.
type hourState int

const (
	stateUnknown hourState = iota
	stateClosed
	stateOpen
)

// period is a half-open interval of whole hours within one day: open at
// Start, closed again at End. {9,17} is open at 16 and closed at 17.
type period struct {
	Start int
	End   int
}

func (p period) contains(hour int) bool {
	if p.End <= p.Start {
		// Degenerate or overnight range from dirty source data; honor the
		// start-to-midnight portion only.
		return hour >= p.Start
	}
	return hour >= p.Start && hour < p.End
}

// schedule is the parsed union of both supported formats for one POI.
type schedule struct {
	// calendar holds the compact per-hour format when present; nil slots
	// carry no information for that hour.
	calendar [7][24]*bool
	hasCal   bool

	// periods holds the human-readable per-day format. dayKnown marks days
	// the source described at all; a known day with no periods is closed.
	periods  [7][]period
	dayKnown [7]bool
}

var dayAbbrev = map[string]time.Weekday{
	"mo": time.Monday,
	"tu": time.Tuesday,
	"we": time.Wednesday,
	"th": time.Thursday,
	"fr": time.Friday,
	"sa": time.Saturday,
	"su": time.Sunday,
}

var dayName = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// parse builds the schedule for a POI from whichever formats its metadata
// carries.
func (e *Engine) parse(poi types.POIDetailedInfo) schedule {
	var s schedule

	if cal := strings.TrimSpace(poi.OpeningHoursCalendar); cal != "" {
		for _, token := range strings.Split(cal, ";") {
			parts := strings.Split(strings.TrimSpace(token), ":")
			if len(parts) != 3 {
				continue
			}
			day, ok := dayAbbrev[strings.ToLower(parts[0])]
			if !ok {
				continue
			}
			hour, err := strconv.Atoi(parts[1])
			if err != nil || hour < 0 || hour > 23 {
				continue
			}
			open := strings.EqualFold(parts[2], "open")
			s.calendar[day][hour] = &open
			s.hasCal = true
		}
	}

	for name, text := range poi.OpeningHours {
		day, ok := dayName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		periods, known := parseDayString(text)
		if known {
			s.periods[day] = periods
			s.dayKnown[day] = true
		}
	}

	return s
}

// parseDayString parses one human-readable day description into open
// periods. The second return is false when the string carried no usable
// information at all.
func parseDayString(text string) ([]period, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil, false
	}
	if strings.Contains(text, "closed") {
		return nil, true
	}
	if strings.Contains(text, "24 hours") {
		return []period{{Start: 0, End: 24}}, true
	}

	var periods []period
	for _, chunk := range strings.Split(text, ";") {
		sides := strings.SplitN(chunk, "to", 2)
		if len(sides) != 2 {
			continue
		}
		start, okStart := parseClock(sides[0])
		end, okEnd := parseClock(sides[1])
		if !okStart || !okEnd {
			// An unparseable side discards only this period.
			continue
		}
		if end == 0 {
			// "... to 12 AM" means until midnight.
			end = 24
		}
		periods = append(periods, period{Start: start, End: end})
	}
	if len(periods) == 0 {
		return nil, false
	}
	return periods, true
}

// parseClock parses one side of a "X to Y" expression into an hour 0-23,
// honoring AM/PM and colon notation ("9 AM", "9:30am", "17:00").
func parseClock(text string) (int, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return 0, false
	}

	isPM := strings.Contains(text, "pm")
	isAM := strings.Contains(text, "am")
	text = strings.NewReplacer("am", "", "pm", "", "open", "", ".", "").Replace(text)
	text = strings.TrimSpace(text)

	// Minutes are dropped: status queries work at hour granularity.
	if idx := strings.Index(text, ":"); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)

	hour, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	if isPM && hour != 12 {
		hour += 12
	}
	if isAM && hour == 12 {
		hour = 0
	}
	if hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}

// stateAt resolves the tri-state for a weekday+hour with the documented
// precedence: the compact calendar wins when it has an answer, the per-day
// strings fill the gaps. Disagreements between the two are a data-quality
// problem worth surfacing, not silently resolving.
func (e *Engine) stateAt(poiID string, s schedule, day time.Weekday, hour int) hourState {
	var fromCal hourState
	if v := s.calendar[day][hour]; v != nil {
		if *v {
			fromCal = stateOpen
		} else {
			fromCal = stateClosed
		}
	}

	var fromPeriods hourState
	if s.dayKnown[day] {
		fromPeriods = stateClosed
		for _, p := range s.periods[day] {
			if p.contains(hour) {
				fromPeriods = stateOpen
				break
			}
		}
	}

	if fromCal != stateUnknown {
		if fromPeriods != stateUnknown && fromPeriods != fromCal && e.logger != nil {
			e.logger.Warn("opening-hours formats disagree",
				slog.String("poi_id", poiID),
				slog.String("day", day.String()),
				slog.Int("hour", hour))
		}
		return fromCal
	}
	return fromPeriods
}

func (e *Engine) hasAnyInfo(s schedule) bool {
	if s.hasCal {
		return true
	}
	for _, known := range s.dayKnown {
		if known {
			return true
		}
	}
	return false
}

// IsCurrentlyOpen reports whether the POI is open at the weekday+hour of now.
func (e *Engine) IsCurrentlyOpen(poi types.POIDetailedInfo, now time.Time) bool {
	s := e.parse(poi)
	return e.stateAt(poi.ID.String(), s, now.Weekday(), now.Hour()) == stateOpen
}

// IsOpeningSoon reports whether the POI is closed now but open at the next
// hour boundary.
func (e *Engine) IsOpeningSoon(poi types.POIDetailedInfo, now time.Time) bool {
	s := e.parse(poi)
	cur := e.stateAt(poi.ID.String(), s, now.Weekday(), now.Hour())
	next := now.Add(time.Hour)
	upcoming := e.stateAt(poi.ID.String(), s, next.Weekday(), next.Hour())
	return cur != stateOpen && upcoming == stateOpen
}

// IsClosingSoon reports whether the POI is open now but closed at the next
// hour boundary.
func (e *Engine) IsClosingSoon(poi types.POIDetailedInfo, now time.Time) bool {
	s := e.parse(poi)
	cur := e.stateAt(poi.ID.String(), s, now.Weekday(), now.Hour())
	next := now.Add(time.Hour)
	upcoming := e.stateAt(poi.ID.String(), s, next.Weekday(), next.Hour())
	return cur == stateOpen && upcoming != stateOpen
}

// NextOpeningTime scans the remainder of the current day and then up to seven
// days ahead for the next transition into an open hour, returning a
// description like "Tuesday at 9 AM". "unknown" means nothing was found in
// the window; callers must treat it as indeterminate, not permanently closed.
func (e *Engine) NextOpeningTime(poi types.POIDetailedInfo, now time.Time) string {
	s := e.parse(poi)
	if !e.hasAnyInfo(s) {
		return "unknown"
	}

	id := poi.ID.String()
	probe := now.Add(time.Hour).Truncate(time.Hour)
	limit := now.Add(7 * 24 * time.Hour)
	for probe.Before(limit) {
		if e.stateAt(id, s, probe.Weekday(), probe.Hour()) == stateOpen {
			if probe.YearDay() == now.YearDay() && probe.Year() == now.Year() {
				return fmt.Sprintf("today at %s", FormatHour(probe.Hour()))
			}
			return fmt.Sprintf("%s at %s", probe.Weekday(), FormatHour(probe.Hour()))
		}
		probe = probe.Add(time.Hour)
	}
	return "unknown"
}

// GetOpeningStatus composes the individual queries into one human-readable
// status line for a POI at the given time.
func (e *Engine) GetOpeningStatus(poi types.POIDetailedInfo, now time.Time) string {
	s := e.parse(poi)
	if !e.hasAnyInfo(s) {
		return StatusUnavailable
	}

	if e.IsCurrentlyOpen(poi, now) {
		if e.IsClosingSoon(poi, now) {
			return fmt.Sprintf("Open now, closing soon (around %s)", FormatHour((now.Hour()+1)%24))
		}
		return "Open now"
	}
	if e.IsOpeningSoon(poi, now) {
		return fmt.Sprintf("Closed now, opening soon (around %s)", FormatHour((now.Hour()+1)%24))
	}
	next := e.NextOpeningTime(poi, now)
	if next == "unknown" {
		return "Closed now, next opening time unknown"
	}
	return fmt.Sprintf("Closed now, opens %s", next)
}

// FormatHour renders a 0-23 hour in 12-hour clock notation: 0 is "12 AM",
// 12 is "12 PM".
func FormatHour(hour int) string {
	switch {
	case hour == 0:
		return "12 AM"
	case hour < 12:
		return fmt.Sprintf("%d AM", hour)
	case hour == 12:
		return "12 PM"
	default:
		return fmt.Sprintf("%d PM", hour-12)
	}
}
