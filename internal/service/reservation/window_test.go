package reservation

import "testing"

// TestOverlapsHalfOpen verifies the half-open overlap rule, in
// particular that back-to-back windows do not conflict.
func TestOverlapsHalfOpen(t *testing.T) {
    cases := []struct {
        name string
        a, b string // "start-end"
        want bool
    }{
        {"identical", "09:00-10:00", "09:00-10:00", true},
        {"partial overlap", "09:00-10:00", "09:30-10:30", true},
        {"contained", "09:00-12:00", "10:00-11:00", true},
        {"containing", "10:00-11:00", "09:00-12:00", true},
        {"touching end to start", "09:00-10:00", "10:00-11:00", false},
        {"touching start to end", "10:00-11:00", "09:00-10:00", false},
        {"disjoint before", "08:00-09:00", "10:00-11:00", false},
        {"disjoint after", "12:00-13:00", "10:00-11:00", false},
        {"one minute overlap", "09:00-10:01", "10:00-11:00", true},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            a := mustWindow(t, tc.a)
            b := mustWindow(t, tc.b)
            if got := a.Overlaps(b); got != tc.want {
                t.Errorf("Overlaps(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
            }
            if got := b.Overlaps(a); got != tc.want {
                t.Errorf("Overlaps(%s, %s) = %v, want %v (symmetry)", tc.b, tc.a, got, tc.want)
            }
        })
    }
}

func TestParseWindowRejectsDegenerate(t *testing.T) {
    if _, err := ParseWindow("10:00", "10:00"); err == nil {
        t.Error("zero-length window accepted")
    }
    if _, err := ParseWindow("10:00", "09:00"); err == nil {
        t.Error("reversed window accepted")
    }
    if _, err := ParseWindow("25:00", "26:00"); err == nil {
        t.Error("out-of-range hour accepted")
    }
    if _, err := ParseWindow("abc", "10:00"); err == nil {
        t.Error("garbage clock accepted")
    }
}

func TestParseClockAcceptsSeconds(t *testing.T) {
    // TIME columns scan as "HH:MM:SS"; the seconds are ignored.
    got, err := ParseClock("09:30:00")
    if err != nil {
        t.Fatalf("ParseClock: %v", err)
    }
    if got != 9*60+30 {
        t.Errorf("ParseClock(09:30:00) = %d, want %d", got, 9*60+30)
    }
}

func TestFirstConflict(t *testing.T) {
    existing := []Window{
        mustWindow(t, "08:00-09:00"),
        mustWindow(t, "10:00-11:00"),
        mustWindow(t, "14:00-16:00"),
    }

    if hit, ok := FirstConflict(mustWindow(t, "09:00-10:00"), existing); ok {
        t.Errorf("free gap reported conflict with %s", hit)
    }
    hit, ok := FirstConflict(mustWindow(t, "10:30-15:00"), existing)
    if !ok {
        t.Fatal("overlapping request reported no conflict")
    }
    if hit != existing[1] {
        t.Errorf("FirstConflict returned %s, want %s", hit, existing[1])
    }
    if _, ok := FirstConflict(mustWindow(t, "06:00-07:00"), nil); ok {
        t.Error("empty existing set reported conflict")
    }
}

func TestWindowString(t *testing.T) {
    w := mustWindow(t, "09:05-10:30")
    if got := w.String(); got != "09:05-10:30" {
        t.Errorf("String() = %q, want %q", got, "09:05-10:30")
    }
}

func mustWindow(t *testing.T, span string) Window {
    t.Helper()
    if len(span) != 11 {
        t.Fatalf("bad span %q", span)
    }
    w, err := ParseWindow(span[:5], span[6:])
    if err != nil {
        t.Fatalf("ParseWindow(%q): %v", span, err)
    }
    return w
}
