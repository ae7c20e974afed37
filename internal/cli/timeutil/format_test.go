package timeutil

import (
	"testing"
	"time"
)

func TestFormatUnix(t *testing.T) {
	sec := int64(1700000000)
	want := time.Unix(sec, 0).Local().Format(LocalTimeFormat)
	if got := FormatUnix(sec); got != want {
		t.Fatalf("FormatUnix(%d) = %q, want %q", sec, got, want)
	}
}
