// internal/app/system/timezones/timezones.go

// Package timezones resolves IANA zone names to *time.Location values and
// caches the result, so the tick loop does not reparse tzdata for every game.
package timezones

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

var cache sync.Map // name -> *time.Location

// Location returns the location for name. An empty name means UTC.
func Location(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	if loc, ok := cache.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	actual, _ := cache.LoadOrStore(name, loc)
	return actual.(*time.Location), nil
}

// Valid reports whether name resolves to a location.
func Valid(name string) bool {
	_, err := Location(name)
	return err == nil
}
