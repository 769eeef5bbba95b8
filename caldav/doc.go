// Package caldav is a small CalDAV (RFC 4791) client for reading events.
//
// A Client discovers the calendars of the authenticated user with a chain
// of PROPFIND requests and fetches their events with calendar-query or
// calendar-multiget REPORT requests. Event payloads are decoded with
// package ical.
//
// Failures come in two flavours. Errors returned as the error result
// (*TransportError, *AuthError, *FormatError) abort the whole call.
// Problems with a single calendar object are collected as *ResourceError
// next to the events that did decode, so one broken resource never hides
// the rest of a calendar.
package caldav
