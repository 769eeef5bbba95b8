package ical

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const standupCalendar = "BEGIN:VCALENDAR\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:abc-1\r\n" +
	"DTSTART:20240101T090000Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

// Sample exported by an Apple device, with a long structured location
// folded across many lines.
const appleCalendar = `BEGIN:VCALENDAR
CALSCALE:GREGORIAN
PRODID:-//Apple Inc.//iOS 13.2//EN
VERSION:2.0
BEGIN:VTIMEZONE
TZID:America/Vancouver
BEGIN:DAYLIGHT
DTSTART:20070311T020000
RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=2SU
TZNAME:GMT-7
TZOFFSETFROM:-0800
TZOFFSETTO:-0700
END:DAYLIGHT
BEGIN:STANDARD
DTSTART:20071104T020000
RRULE:FREQ=YEARLY;BYMONTH=11;BYDAY=1SU
TZNAME:GMT-8
TZOFFSETFROM:-0700
TZOFFSETTO:-0800
END:STANDARD
END:VTIMEZONE
BEGIN:VEVENT
CREATED:20191002T181641Z
DTEND;TZID=America/Vancouver:20191014T090000
DTSTAMP:20191014T050818Z
DTSTART;TZID=America/Vancouver:20191014T070000
LAST-MODIFIED:20191002T181641Z
LOCATION:312 Boren Ave South\nSeattle WA 98144\nUSA
SEQUENCE:0
SUMMARY:Swaybar Bushing Installation
TRANSP:OPAQUE
UID:2DC25870-241F-4279-9720-AB26C8DA5A60
URL;VALUE=URI:
X-APPLE-STRUCTURED-LOCATION;VALUE=URI;X-ADDRESS=312 Boren Ave South\\nSe
 attle WA 98144\\nUSA;X-APPLE-ABUID=Tru-Line’s Work;X-APPLE-MAP
 KIT-HANDLE=CAESjQIIwjsaEglN7OsKx8xHQBF/pyRGKpRewCKEAQoNVW5pdGVkIFN0YXRlc
 xICVVMaCldhc2hpbmd0b24iAldBKgRLaW5nMgdTZWF0dGxlOgU5ODE0NEIIQXRsYW50aWNSC
 jsgodmfx+vg0YSuAQ==;X-APPLE-RADIUS=22.28845908357249;X-APPLE-REFERENCEFR
 AME=1;X-TITLE=312 Boren Ave South\\nSeattle WA 98144\\nUSA:geo:47.599824
 ,-122.315080
X-APPLE-TRAVEL-ADVISORY-BEHAVIOR:DISABLED
BEGIN:VALARM
ACTION:DISPLAY
DESCRIPTION:Reminder
TRIGGER:-PT30M
END:VALARM
END:VEVENT
END:VCALENDAR
`

func TestParseStandup(t *testing.T) {
	forest, err := ParseString(standupCalendar)
	require.NoError(t, err)
	require.Len(t, forest, 1)

	cal := forest[0]
	assert.Equal(t, KindCalendar, cal.Kind)
	require.Len(t, cal.Children, 1)

	ev := cal.Children[0]
	assert.Equal(t, KindEvent, ev.Kind)
	assert.Equal(t, "VEVENT", ev.Name)
	require.Len(t, ev.Props, 3)
	assert.Equal(t, "UID", ev.Props[0].Name)
	assert.Equal(t, "abc-1", ev.Props[0].Value)
	assert.Equal(t, "DTSTART", ev.Props[1].Name)
	assert.Equal(t, "SUMMARY", ev.Props[2].Name)
}

func TestParseAppleCalendar(t *testing.T) {
	forest, err := ParseString(appleCalendar)
	require.NoError(t, err)
	require.Len(t, forest, 1)

	cal := forest[0]
	require.Len(t, cal.ChildrenOf(KindTimezone), 1)
	tz := cal.ChildrenOf(KindTimezone)[0]
	assert.Len(t, tz.Children, 2)
	assert.Equal(t, KindUnknown, tz.Children[0].Kind)
	assert.Equal(t, "DAYLIGHT", tz.Children[0].Name)

	events := cal.ChildrenOf(KindEvent)
	require.Len(t, events, 1)
	ev := events[0]

	loc := ev.Prop("X-APPLE-STRUCTURED-LOCATION")
	require.NotNil(t, loc)
	assert.Equal(t, "geo:47.599824,-122.315080", loc.Value)
	assert.Equal(t, "URI", loc.Params.Get("value"))
	assert.Equal(t, "Tru-Line’s Work", loc.Params.Get("X-APPLE-ABUID"))
	assert.Equal(t, "1", loc.Params.Get("X-APPLE-REFERENCEFRAME"))
	assert.Equal(t, `312 Boren Ave South\\nSeattle WA 98144\\nUSA`, loc.Params.Get("X-TITLE"))

	url := ev.Prop("URL")
	require.NotNil(t, url)
	assert.Equal(t, "", url.Value)

	alarms := ev.ChildrenOf(KindAlarm)
	require.Len(t, alarms, 1)
	assert.Equal(t, "-PT30M", alarms[0].Prop("TRIGGER").Value)
}

func TestParseQuotedParameters(t *testing.T) {
	input := "BEGIN:VCALENDAR\n" +
		"BEGIN:VEVENT\n" +
		"UID:1\n" +
		"DTSTART;TZID=\"(UTC-08:00) Pacific Time (US & Canada)\";VALUE=DATE-TIME:20210101T100000\n" +
		"ATTENDEE;CN=\"Alice Rüd\";RSVP=TRUE;EMAIL=alice@example.com:mailto:alice@example.com\n" +
		"X-MULTI;MEMBER=\"mailto:a@example.com\",\"mailto:b@example.com\";ROLE=a,b:x\n" +
		"END:VEVENT\n" +
		"END:VCALENDAR\n"

	forest, err := ParseString(input)
	require.NoError(t, err)
	ev := forest[0].Children[0]

	start := ev.Prop("DTSTART")
	assert.Equal(t, "(UTC-08:00) Pacific Time (US & Canada)", start.Params.Get("TZID"))
	assert.Equal(t, "DATE-TIME", start.Params.Get("VALUE"))
	assert.Equal(t, "20210101T100000", start.Value)

	attendee := ev.Prop("ATTENDEE")
	assert.Equal(t, "Alice Rüd", attendee.Params.Get("cn"))
	assert.Equal(t, "mailto:alice@example.com", attendee.Value)

	multi := ev.Prop("X-MULTI")
	assert.Equal(t, []string{"mailto:a@example.com", "mailto:b@example.com"}, multi.Params.Values("MEMBER"))
	assert.Equal(t, []string{"a", "b"}, multi.Params.Values("ROLE"))
}

func TestParseLowercaseNames(t *testing.T) {
	forest, err := ParseString("begin:vcalendar\nbegin:vevent\nuid:x\nend:vevent\nend:vcalendar\n")
	require.NoError(t, err)
	ev := forest[0].Children[0]
	assert.Equal(t, KindEvent, ev.Kind)
	assert.Equal(t, "x", ev.Prop("UID").Value)
}

func TestParseUnknownComponentKept(t *testing.T) {
	forest, err := ParseString("BEGIN:VCALENDAR\nBEGIN:X-WIDGET\nFOO:bar\nEND:X-WIDGET\nBEGIN:VTODO\nUID:t\nEND:VTODO\nEND:VCALENDAR\n")
	require.NoError(t, err)
	require.Len(t, forest[0].Children, 2)
	assert.Equal(t, KindUnknown, forest[0].Children[0].Kind)
	assert.Equal(t, "X-WIDGET", forest[0].Children[0].Name)
	assert.Equal(t, "VTODO", forest[0].Children[1].Name)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "unclosed event",
			input:    "BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:1\nEND:VCALENDAR\n",
			wantLine: 4,
			wantMsg:  "does not match",
		},
		{
			name:     "missing end at eof",
			input:    "BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:1\n",
			wantLine: 2,
			wantMsg:  "missing END:VEVENT",
		},
		{
			name:     "unmatched end",
			input:    "BEGIN:VCALENDAR\nEND:VEVENT\nEND:VCALENDAR\n",
			wantLine: 2,
			wantMsg:  "does not match",
		},
		{
			name:     "end without begin",
			input:    "END:VEVENT\n",
			wantLine: 1,
			wantMsg:  "without matching BEGIN",
		},
		{
			name:     "missing colon",
			input:    "BEGIN:VCALENDAR\nGARBAGE\nEND:VCALENDAR\n",
			wantLine: 2,
			wantMsg:  "missing ':'",
		},
		{
			name:     "empty name",
			input:    "BEGIN:VCALENDAR\n:value\nEND:VCALENDAR\n",
			wantLine: 2,
			wantMsg:  "empty property name",
		},
		{
			name:     "property at top level",
			input:    "VERSION:2.0\n",
			wantLine: 1,
			wantMsg:  "outside of any component",
		},
		{
			name:     "event outside calendar",
			input:    "BEGIN:VEVENT\nUID:1\nEND:VEVENT\n",
			wantLine: 1,
			wantMsg:  "inside VCALENDAR",
		},
		{
			name:     "nested calendar",
			input:    "BEGIN:VCALENDAR\nBEGIN:VCALENDAR\nEND:VCALENDAR\nEND:VCALENDAR\n",
			wantLine: 2,
			wantMsg:  "nested",
		},
		{
			name:     "begin without name",
			input:    "BEGIN:\n",
			wantLine: 1,
			wantMsg:  "BEGIN without component name",
		},
		{
			name:     "malformed parameter",
			input:    "BEGIN:VCALENDAR\nX-FOO;BAR:1\nEND:VCALENDAR\n",
			wantLine: 2,
			wantMsg:  "malformed parameter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input)
			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantLine, fe.Line)
			assert.Contains(t, fe.Msg, tt.wantMsg)
		})
	}
}

func TestParseFoldedEqualsUnfolded(t *testing.T) {
	folded := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nUID:1\r\nDESCRIPTION:Lorem ipsum dolor sit amet\\, consectetur adipiscing elit\\, sed d\r\n o eiusmod tempor\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	unfolded := strings.Replace(folded, "\r\n ", "", 1)

	a, err := ParseString(folded)
	require.NoError(t, err)
	b, err := ParseString(unfolded)
	require.NoError(t, err)

	assert.Equal(t, b, a)
	assert.Equal(t, "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor",
		a[0].Children[0].Prop("DESCRIPTION").Text())
}
