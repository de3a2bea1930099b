package queue

import (
	"testing"
	"time"
)

func TestRetryDelay_Exponential(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
	}
	for _, c := range cases {
		if got := RetryDelay(c.attempt); got != c.want {
			t.Errorf("RetryDelay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestDLQName(t *testing.T) {
	if got := dlqName("scans"); got != "scans-dlq" {
		t.Errorf("got %q, want %q", got, "scans-dlq")
	}
}
