package retry

import (
	"testing"
	"time"
)

func TestNewContext_Defaults(t *testing.T) {
	c := NewContext(0, 0)
	if c.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", c.MaxAttempts, DefaultMaxAttempts)
	}
	if c.BaseDelay != DefaultBaseDelay {
		t.Errorf("BaseDelay = %v, want %v", c.BaseDelay, DefaultBaseDelay)
	}
	if c.Attempt != 0 {
		t.Errorf("Attempt = %d, want 0", c.Attempt)
	}
}

func TestLinear_Decide(t *testing.T) {
	tests := []struct {
		name      string
		attempt   int
		wantRetry bool
		wantDelay time.Duration
	}{
		{name: "first retry", attempt: 0, wantRetry: true, wantDelay: 1000 * time.Millisecond},
		{name: "second retry", attempt: 1, wantRetry: true, wantDelay: 2000 * time.Millisecond},
		{name: "fifth retry", attempt: 4, wantRetry: true, wantDelay: 5000 * time.Millisecond},
		{name: "ceiling reached", attempt: 5, wantRetry: false},
		{name: "beyond ceiling", attempt: 9, wantRetry: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Context{Attempt: tt.attempt, MaxAttempts: 5, BaseDelay: time.Second}
			got := Linear{}.Decide(c)
			if got.Retry != tt.wantRetry {
				t.Errorf("Retry = %v, want %v", got.Retry, tt.wantRetry)
			}
			if got.Delay != tt.wantDelay {
				t.Errorf("Delay = %v, want %v", got.Delay, tt.wantDelay)
			}
		})
	}
}

func TestLinear_MaxDelay(t *testing.T) {
	p := Linear{MaxDelay: 3 * time.Second}
	c := Context{Attempt: 7, MaxAttempts: 10, BaseDelay: time.Second}

	if got := p.Decide(c).Delay; got != 3*time.Second {
		t.Errorf("Delay = %v, want 3s", got)
	}
}

func TestLinear_IsPure(t *testing.T) {
	c := Context{Attempt: 2, MaxAttempts: 5, BaseDelay: time.Second}
	a := Linear{}.Decide(c)
	b := Linear{}.Decide(c)
	if a != b {
		t.Errorf("Decide not deterministic: %v vs %v", a, b)
	}
	if c.Attempt != 2 {
		t.Errorf("context mutated: Attempt = %d", c.Attempt)
	}
}

func TestExponential_NonDecreasingAndBounded(t *testing.T) {
	for _, r := range []float64{0, 0.5, 0.999} {
		r := r
		p := Exponential{
			MaxDelay: 10 * time.Second,
			Factor:   2,
			Jitter:   0.5,
			Rand:     func() float64 { return r },
		}

		var prev time.Duration
		for attempt := 0; attempt < 12; attempt++ {
			d := p.Decide(Context{Attempt: attempt, MaxAttempts: 12, BaseDelay: 250 * time.Millisecond})
			if !d.Retry {
				t.Fatalf("attempt %d: Retry = false, want true", attempt)
			}
			if d.Delay < prev {
				t.Errorf("rand=%v attempt %d: delay %v < previous %v", r, attempt, d.Delay, prev)
			}
			if d.Delay > 10*time.Second {
				t.Errorf("rand=%v attempt %d: delay %v exceeds max", r, attempt, d.Delay)
			}
			prev = d.Delay
		}
	}
}

func TestExponential_NoJitter(t *testing.T) {
	p := Exponential{MaxDelay: time.Minute, Factor: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}

	for attempt, w := range want {
		got := p.Decide(Context{Attempt: attempt, MaxAttempts: 5, BaseDelay: time.Second}).Delay
		if got != w {
			t.Errorf("attempt %d: Delay = %v, want %v", attempt, got, w)
		}
	}
}

func TestExponential_Ceiling(t *testing.T) {
	p := DefaultExponential()
	d := p.Decide(Context{Attempt: 5, MaxAttempts: 5, BaseDelay: time.Second})
	if d.Retry {
		t.Error("Retry = true at ceiling, want false")
	}
}
