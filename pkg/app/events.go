// Package app holds the bubbletea event types shared by the cache monitor's
// refresh loop: a periodic tick to re-poll cache statistics, and an
// asynchronous data-update event for collectors that run in a goroutine.
package app

import "time"

// DataUpdateEvent carries a freshly polled value back into the bubbletea
// update loop. Receivers type-assert Data based on Source.
type DataUpdateEvent struct {
	Source    string      // collector name (e.g. "store-stats", "disk-stats")
	Data      interface{} // type-asserted by the receiver
	Err       error       // non-nil if the fetch failed
	Timestamp time.Time
}

// TickEvent is sent periodically by the render ticker to trigger a
// statistics refresh.
type TickEvent struct {
	Time time.Time
}
