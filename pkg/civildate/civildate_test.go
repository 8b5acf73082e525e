package civildate

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func TestParse(t *testing.T) {
	want := civil.Date{Year: 2024, Month: time.January, Day: 31}
	for _, raw := range []string{"2024-01-31", "31/01/2024", "2024-01-31T22:10:00Z", " 2024-01-31 "} {
		got, err := Parse(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q = %s, want %s", raw, got, want)
		}
	}

	for _, raw := range []string{"", "31-01-2024", "2024-02-30"} {
		if _, err := Parse(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestDisplayRoundTrip(t *testing.T) {
	d := civil.Date{Year: 2024, Month: time.March, Day: 5}
	if got := Display(d); got != "05/03/2024" {
		t.Fatalf("display = %s", got)
	}
	if got := FromTime(ToTime(d)); got != d {
		t.Fatalf("round trip = %s", got)
	}
}
