// Package reservation implements the reservation concurrency engine: the
// pure overlap checker, the duplicate submission detector and the
// transaction orchestrator that creates bookings atomically.
package reservation

import (
    "fmt"
    "strconv"
    "strings"
)

// Window is a half-open time window [Start, End) expressed in minutes
// from midnight.  Windows are pure values so overlap checks need no
// database access.
type Window struct {
    Start int // minutes from midnight, inclusive
    End   int // minutes from midnight, exclusive
}

// ParseClock converts a "15:04" clock string into minutes from midnight.
func ParseClock(s string) (int, error) {
    // Accept "HH:MM" and "HH:MM:SS" (DB TIME columns scan as the latter).
    parts := strings.Split(strings.TrimSpace(s), ":")
    if len(parts) < 2 || len(parts) > 3 {
        return 0, fmt.Errorf("invalid clock value %q", s)
    }
    h, err := strconv.Atoi(parts[0])
    if err != nil || h < 0 || h > 23 {
        return 0, fmt.Errorf("invalid hour in %q", s)
    }
    m, err := strconv.Atoi(parts[1])
    if err != nil || m < 0 || m > 59 {
        return 0, fmt.Errorf("invalid minute in %q", s)
    }
    return h*60 + m, nil
}

// ParseWindow builds a Window from "15:04" start and end strings.  The
// end must be strictly after the start; zero-length windows are
// rejected here so the overlap rule never has to consider them.
func ParseWindow(start, end string) (Window, error) {
    s, err := ParseClock(start)
    if err != nil {
        return Window{}, err
    }
    e, err := ParseClock(end)
    if err != nil {
        return Window{}, err
    }
    if e <= s {
        return Window{}, fmt.Errorf("window end %q is not after start %q", end, start)
    }
    return Window{Start: s, End: e}, nil
}

// Overlaps reports whether two half-open windows share any instant.
// [s1,e1) and [s2,e2) conflict iff s1 < e2 && s2 < e1, so touching
// windows (e1 == s2) do not conflict.
func (w Window) Overlaps(o Window) bool {
    return w.Start < o.End && o.Start < w.End
}

// String renders the window as "15:04-16:04" for error messages.
func (w Window) String() string {
    return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Start/60, w.Start%60, w.End/60, w.End%60)
}

// FirstConflict returns the first existing window that overlaps the
// requested one.  Existing windows are checked in the order given, so
// callers that want deterministic error messages should pass them
// sorted by start time.
func FirstConflict(requested Window, existing []Window) (Window, bool) {
    for _, e := range existing {
        if requested.Overlaps(e) {
            return e, true
        }
    }
    return Window{}, false
}
