package ical

import (
	"testing"

	goical "github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestICalConversion(t *testing.T) {
	forest, err := ParseString(standupCalendar)
	require.NoError(t, err)

	gc := forest[0].ICal()
	assert.Equal(t, goical.CompCalendar, gc.Name)
	require.Len(t, gc.Children, 1)

	ev := gc.Children[0]
	assert.Equal(t, goical.CompEvent, ev.Name)
	uid := ev.Props.Get(goical.PropUID)
	require.NotNil(t, uid)
	assert.Equal(t, "abc-1", uid.Value)

	back := FromICal(gc)
	assert.Equal(t, KindCalendar, back.Kind)
	require.Len(t, back.Children, 1)
	got := back.Children[0]
	assert.Equal(t, KindEvent, got.Kind)
	// Properties come back in name order.
	require.Len(t, got.Props, 3)
	assert.Equal(t, "DTSTART", got.Props[0].Name)
	assert.Equal(t, "SUMMARY", got.Props[1].Name)
	assert.Equal(t, "UID", got.Props[2].Name)
}

func TestICalConversionKeepsParams(t *testing.T) {
	c := NewComponent("VEVENT")
	c.Add(&Property{Name: "DTSTART", Params: Params{"TZID": {"Europe/Berlin"}}, Value: "20240101T090000"})

	gc := c.ICal()
	assert.Equal(t, "Europe/Berlin", gc.Props.Get(goical.PropDateTimeStart).Params.Get(goical.ParamTimezoneID))

	back := FromICal(gc)
	assert.Equal(t, "Europe/Berlin", back.Prop("DTSTART").Params.Get("tzid"))

	// The copy is independent of the original.
	gc.Props.Get(goical.PropDateTimeStart).Params.Set(goical.ParamTimezoneID, "UTC")
	assert.Equal(t, "Europe/Berlin", c.Prop("DTSTART").Params.Get("TZID"))
}
