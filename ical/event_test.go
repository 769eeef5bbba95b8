package ical

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsStandup(t *testing.T) {
	forest, err := ParseString(standupCalendar)
	require.NoError(t, err)

	events, err := Events(forest, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "abc-1", ev.UID)
	assert.Equal(t, "Standup", ev.Summary)
	require.NotNil(t, ev.Start)
	assert.True(t, ev.Start.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), ev.Start.Time)
	assert.Nil(t, ev.End)
	assert.Same(t, forest[0].Children[0], ev.Component)
}

func TestEventsAppleCalendar(t *testing.T) {
	forest, err := ParseString(appleCalendar)
	require.NoError(t, err)

	events, err := Events(forest, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "2DC25870-241F-4279-9720-AB26C8DA5A60", ev.UID)
	assert.Equal(t, "312 Boren Ave South\nSeattle WA 98144\nUSA", ev.Location)
	require.NotNil(t, ev.Start)
	assert.Equal(t, "America/Vancouver", ev.Start.TZID)
	assert.False(t, ev.Start.UTC)
	assert.Equal(t, 7, ev.Start.Time.Hour())
	require.NotNil(t, ev.End)
	assert.Equal(t, 9, ev.End.Time.Hour())

	// Unknown properties stay available on the component.
	assert.NotNil(t, ev.Component.Prop("X-APPLE-TRAVEL-ADVISORY-BEHAVIOR"))

	require.Len(t, ev.Timezones, 1)
	assert.Equal(t, "America/Vancouver", ev.Timezones[0].Prop("TZID").Value)
}

func TestEventsRecurrenceOverridesAreSeparate(t *testing.T) {
	input := "BEGIN:VCALENDAR\n" +
		"BEGIN:VEVENT\nUID:weekly\nDTSTART:20240101T100000Z\nRRULE:FREQ=WEEKLY\nSUMMARY:Sync\nEND:VEVENT\n" +
		"BEGIN:VEVENT\nUID:weekly\nRECURRENCE-ID:20240108T100000Z\nDTSTART:20240108T110000Z\nSUMMARY:Sync (moved)\nEND:VEVENT\n" +
		"END:VCALENDAR\n"

	forest, err := ParseString(input)
	require.NoError(t, err)
	events, err := Events(forest, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, events[0].UID, events[1].UID)
	assert.Nil(t, events[0].RecurrenceID)
	require.NotNil(t, events[1].RecurrenceID)
	assert.Equal(t, time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC), events[1].RecurrenceID.Time)
	assert.Equal(t, "Sync (moved)", events[1].Summary)
}

func TestDecodeEventDuration(t *testing.T) {
	forest, err := ParseString("BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:d\nDTSTART:20240101T090000Z\nDURATION:PT45M\nEND:VEVENT\nEND:VCALENDAR\n")
	require.NoError(t, err)

	ev, err := DecodeEvent(forest[0].Children[0], nil)
	require.NoError(t, err)
	require.NotNil(t, ev.End)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 45, 0, 0, time.UTC), ev.End.Time)
	assert.True(t, ev.End.UTC)
}

func TestDecodeEventAllDay(t *testing.T) {
	forest, err := ParseString("BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:holiday\nDTSTART;VALUE=DATE:20241225\nDTEND;VALUE=DATE:20241226\nCATEGORIES:HOLIDAY,FAMILY\nEND:VEVENT\nEND:VCALENDAR\n")
	require.NoError(t, err)

	ev, err := DecodeEvent(forest[0].Children[0], nil)
	require.NoError(t, err)
	assert.True(t, ev.Start.DateOnly)
	assert.True(t, ev.End.DateOnly)
	assert.Equal(t, []string{"HOLIDAY", "FAMILY"}, ev.Categories)
	assert.Equal(t, "2024-12-25", ev.Start.String())
}

func TestDecodeEventErrors(t *testing.T) {
	t.Run("missing uid", func(t *testing.T) {
		forest, err := ParseString("BEGIN:VCALENDAR\nBEGIN:VEVENT\nSUMMARY:x\nEND:VEVENT\nEND:VCALENDAR\n")
		require.NoError(t, err)
		_, err = Events(forest, nil)
		assert.True(t, errors.Is(err, ErrMissingUID))
	})

	t.Run("utc with tzid", func(t *testing.T) {
		forest, err := ParseString("BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:x\nDTSTART;TZID=Europe/Berlin:20240101T090000Z\nEND:VEVENT\nEND:VCALENDAR\n")
		require.NoError(t, err)
		_, err = Events(forest, nil)
		var fe *FormatError
		require.ErrorAs(t, err, &fe)
		assert.Contains(t, err.Error(), "DTSTART")
	})

	t.Run("not an event", func(t *testing.T) {
		_, err := DecodeEvent(NewComponent("VTODO"), nil)
		assert.Error(t, err)
	})
}
