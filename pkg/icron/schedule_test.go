package icron

import (
	"testing"
	"time"
)

func TestGetTriggerInfo_StandardExpression(t *testing.T) {
	ref := time.Date(2026, 8, 24, 10, 17, 30, 0, time.UTC)

	info, err := GetTriggerInfo("*/5 * * * *", ref)
	if err != nil {
		t.Fatal(err)
	}

	wantLast := time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC)
	wantNext := time.Date(2026, 8, 24, 10, 20, 0, 0, time.UTC)
	if !info.Last.Equal(wantLast) {
		t.Fatalf("Last=%v, want %v", info.Last, wantLast)
	}
	if !info.Next.Equal(wantNext) {
		t.Fatalf("Next=%v, want %v", info.Next, wantNext)
	}
	if info.TimeSinceLast != 2*time.Minute+30*time.Second {
		t.Fatalf("TimeSinceLast=%v", info.TimeSinceLast)
	}
}

func TestGetTriggerInfo_SixFieldExpression(t *testing.T) {
	ref := time.Date(2026, 8, 24, 10, 0, 30, 0, time.UTC)

	info, err := GetTriggerInfo("0 * * * * *", ref)
	if err != nil {
		t.Fatal(err)
	}
	if info.Next.Second() != 0 {
		t.Fatalf("Next=%v, want a whole minute", info.Next)
	}
}

func TestGetTriggerInfo_Invalid(t *testing.T) {
	if _, err := GetTriggerInfo("not a cron", time.Now()); err == nil {
		t.Fatal("expected error for invalid expression")
	}
}
