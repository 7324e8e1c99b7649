package utils

import (
	"testing"
	"time"
)

func TestWeekStart(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2025-03-10T08:00:00Z", "2025-03-10"}, // Monday
		{"2025-03-12T23:59:00Z", "2025-03-10"},
		{"2025-03-16T12:00:00Z", "2025-03-10"}, // Sunday
		{"2025-03-17T00:00:00Z", "2025-03-17"},
	}
	for _, c := range cases {
		ts, err := time.Parse(time.RFC3339, c.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := WeekStart(ts, time.UTC); got != c.want {
			t.Errorf("WeekStart(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestDayKeyUsesLocation(t *testing.T) {
	ts := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)
	loc := time.FixedZone("UTC+2", 2*60*60)
	if got := DayKey(ts, loc); got != "2025-03-11" {
		t.Fatalf("DayKey = %s, want 2025-03-11", got)
	}
	if got := DayKey(ts, nil); got != "2025-03-10" {
		t.Fatalf("DayKey(nil loc) = %s, want 2025-03-10", got)
	}
}

func TestAddDays(t *testing.T) {
	got, err := AddDays("2025-02-27", 2)
	if err != nil {
		t.Fatal(err)
	}
	if got != "2025-03-01" {
		t.Fatalf("AddDays = %s", got)
	}
	if _, err := AddDays("27/02/2025", 1); err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}

func TestStructRoundTrip(t *testing.T) {
	type payload struct {
		Name  string             `json:"name"`
		Score float64            `json:"score"`
		Tags  []string           `json:"tags"`
		Map   map[string]float64 `json:"map"`
	}
	in := payload{Name: "oat bar", Score: 6.5, Tags: []string{"a", "b"}, Map: map[string]float64{"sugar": 12}}
	st, err := ToStruct(in)
	if err != nil {
		t.Fatal(err)
	}
	if st.Fields["name"].GetStringValue() != "oat bar" {
		t.Fatalf("name field = %v", st.Fields["name"])
	}
	var out payload
	if err := FromStruct(st, &out); err != nil {
		t.Fatal(err)
	}
	if out.Name != in.Name || out.Score != in.Score || len(out.Tags) != 2 || out.Map["sugar"] != 12 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(12, 0, 10) != 10 || Clamp(-1, 0, 10) != 0 || Clamp(4.2, 0, 10) != 4.2 {
		t.Fatal("clamp bounds")
	}
}
