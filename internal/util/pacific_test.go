package util

import (
	"testing"
	"time"
)

func TestPacificDSTBoundaries(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		dst  bool
	}{
		{"mid winter", time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC), false},
		{"mid summer", time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC), true},
		// DST begins 2026-03-08 02:00 PST (10:00 UTC).
		{"minute before spring forward", time.Date(2026, 3, 8, 9, 59, 0, 0, time.UTC), false},
		{"at spring forward", time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC), true},
		// DST ends 2026-11-01 02:00 PDT (09:00 UTC).
		{"minute before fall back", time.Date(2026, 11, 1, 8, 59, 0, 0, time.UTC), true},
		{"at fall back", time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pacificDST(tc.t); got != tc.dst {
				t.Errorf("pacificDST(%v) = %v, want %v", tc.t, got, tc.dst)
			}
		})
	}
}

func TestToPacificOffset(t *testing.T) {
	winter := ToPacific(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	if _, off := winter.Zone(); off != -8*3600 {
		t.Errorf("winter offset = %d, want -28800", off)
	}
	summer := ToPacific(time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC))
	if _, off := summer.Zone(); off != -7*3600 {
		t.Errorf("summer offset = %d, want -25200", off)
	}
}

func TestPacificDateKey(t *testing.T) {
	// 06:00 UTC in winter is 22:00 PST the previous day.
	got := PacificDateKey(time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC))
	if got != "2026-01-14" {
		t.Errorf("PacificDateKey = %q, want 2026-01-14", got)
	}
	// 08:00 UTC is 00:00 PST the same day.
	got = PacificDateKey(time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC))
	if got != "2026-01-15" {
		t.Errorf("PacificDateKey = %q, want 2026-01-15", got)
	}
}

func TestNextPacificMidnight(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
		want time.Time
	}{
		{
			"plain winter day",
			time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
			time.Date(2026, 1, 16, 8, 0, 0, 0, time.UTC),
		},
		{
			"day containing spring forward",
			time.Date(2026, 3, 8, 8, 0, 0, 0, time.UTC), // midnight PST on transition day
			time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC),  // next midnight is PDT
		},
		{
			"day containing fall back",
			time.Date(2026, 11, 1, 7, 0, 0, 0, time.UTC), // midnight PDT on transition day
			time.Date(2026, 11, 2, 8, 0, 0, 0, time.UTC),  // next midnight is PST
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextPacificMidnight(tc.t)
			if !got.Equal(tc.want) {
				t.Errorf("NextPacificMidnight(%v) = %v, want %v", tc.t, got.UTC(), tc.want)
			}
			if !got.After(tc.t) {
				t.Errorf("NextPacificMidnight(%v) = %v is not after input", tc.t, got.UTC())
			}
		})
	}
}
