package auth

import (
	"strconv"
	"testing"
	"time"
)

func TestOTPGenerator_Range(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := NewOTPGenerator(0, WithOTPClock(func() time.Time { return now }))

	for i := 0; i < 500; i++ {
		c, err := g.Generate()
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		n, err := strconv.Atoi(c.Code)
		if err != nil {
			t.Fatalf("code %q is not an integer", c.Code)
		}
		if n < 100000 || n > 999999 {
			t.Fatalf("code %d outside [100000, 999999]", n)
		}
		if !c.ExpiresAt.Equal(now.Add(2 * time.Minute)) {
			t.Fatalf("ExpiresAt = %v, want now+2m", c.ExpiresAt)
		}
	}
}

func TestChallenge_Matches(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC)
	c := Challenge{Code: "123456", ExpiresAt: expiry}

	tests := []struct {
		name string
		code string
		now  time.Time
		want bool
	}{
		{"correct before expiry", "123456", expiry.Add(-time.Second), true},
		{"exactly at expiry", "123456", expiry, false},
		{"after expiry", "123456", expiry.Add(time.Second), false},
		{"wrong code", "654321", expiry.Add(-time.Minute), false},
		{"empty code", "", expiry.Add(-time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Matches(tt.code, tt.now); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}

	if (Challenge{}).Matches("", expiry) {
		t.Error("an empty challenge must never match")
	}
}

func TestChallenge_Outstanding(t *testing.T) {
	expiry := time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC)
	c := Challenge{Code: "123456", ExpiresAt: expiry}

	if !c.Outstanding(expiry.Add(-time.Second)) {
		t.Error("challenge should be outstanding before expiry")
	}
	if c.Outstanding(expiry) {
		t.Error("challenge should not be outstanding at expiry")
	}
	if (Challenge{}).Outstanding(expiry) {
		t.Error("zero challenge should not be outstanding")
	}
}
