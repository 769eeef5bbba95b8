// Package ical reads and writes the iCalendar text format (RFC 5545).
//
// Input is processed in three stages. A LineScanner unfolds physical lines
// into logical content lines, Parse turns content lines into a tree of
// Components, and the value helpers (Property.DateTime, Property.Text,
// DecodeValue, DecodeEvent) give typed access to property values.
//
// The package is lenient about line endings: CRLF, bare LF, a missing final
// line terminator, blank lines and a leading byte order mark are all
// accepted. Structural problems such as an unclosed BEGIN are reported as
// *FormatError with the offending line number.
//
// Parsing keeps every property, including ones this package does not know
// how to decode, so Encode(Parse(x)) reproduces the same component tree.
package ical
