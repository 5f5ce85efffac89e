package retry_test

import (
	"fmt"
	"math"
	"runtime"
	"testing"
	"time"
	"webshot/internal/retry"

	"github.com/google/go-cmp/cmp"
)

func identity(n int64) int64 {
	return n
}

func TestBackoffNext(t *testing.T) {
	type in struct {
		first uint
	}

	type want struct {
		first  time.Duration
		second bool
	}

	tests := []struct {
		name     string
		receiver retry.Backoff
		in       in
		want     want
	}{
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			retry.NoRetry(),
			in{
				0,
			},
			want{
				0,
				false,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			retry.Exponential(time.Second, time.Minute, 0, identity),
			in{
				0,
			},
			want{
				0,
				false,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			retry.Exponential(time.Second, time.Minute, 3, identity),
			in{
				0,
			},
			want{
				time.Second,
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			retry.Exponential(time.Second, time.Minute, 3, identity),
			in{
				2,
			},
			want{
				4 * time.Second,
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			retry.Exponential(time.Second, time.Minute, 3, identity),
			in{
				3,
			},
			want{
				0,
				false,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			retry.Exponential(time.Second, 10*time.Second, 100, identity),
			in{
				10,
			},
			want{
				10 * time.Second,
				true,
			},
		},
		{
			func() string {
				_, _, line, _ := runtime.Caller(1)
				return fmt.Sprintf("L%d", line)
			}(),
			retry.Exponential(time.Second, math.MaxInt64, 100, identity),
			in{
				70,
			},
			want{
				math.MaxInt64,
				true,
			},
		},
	}
	for _, tt := range tests {
		name := tt.name
		receiver := tt.receiver
		in := tt.in
		want := tt.want
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, ok := receiver.Next(in.first)
			if diff := cmp.Diff(want.first, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.second, ok); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestBackoffDefaultJitterStaysInWindow(t *testing.T) {
	b := retry.Exponential(10*time.Millisecond, time.Second, 5, nil)
	for attempt := uint(0); attempt < 5; attempt++ {
		got, ok := b.Next(attempt)
		if !ok {
			t.Fatalf("attempt %d: expected retry", attempt)
		}
		if got < 0 || got >= time.Duration(10*time.Millisecond)<<attempt {
			t.Errorf("attempt %d: %s outside window", attempt, got)
		}
	}
}
