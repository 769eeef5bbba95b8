// Command minicaldav lists CalDAV calendars, prints their events and parses
// iCalendar files.
//
// Commands:
//   - calendars: Discover the calendars of an account
//   - events: Print the events of one or all calendars
//   - parse: Parse an iCalendar file and print or re-encode it
//   - sync: Report what changed since the previous run
//   - login: Obtain an OAuth token for servers that need one
package main

func main() {
	Execute()
}
