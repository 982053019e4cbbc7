package patientreg

import (
	"testing"
	"time"
)

func TestAge(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		dob  time.Time
		want int
	}{
		{"birthday passed this year", time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), 36},
		{"birthday later this year", time.Date(1990, 12, 31, 0, 0, 0, 0, time.UTC), 35},
		{"birthday today", time.Date(2000, 8, 30, 0, 0, 0, 0, time.UTC), 26},
		{"infant", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Patient{DateOfBirth: tt.dob}
			if got := p.Age(now); got != tt.want {
				t.Errorf("Age() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFullName(t *testing.T) {
	p := &Patient{FirstName: "Abebe", LastName: "Kebede"}
	if p.FullName() != "Abebe Kebede" {
		t.Errorf("FullName() = %q", p.FullName())
	}
}
