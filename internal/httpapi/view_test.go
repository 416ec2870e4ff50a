package httpapi

import (
	"regexp"
	"testing"

	"github.com/you/napgram-console/internal/core"
)

func TestDisplayTime(t *testing.T) {
	if got := displayTime(core.Message{HasTime: false}); got != "" {
		t.Fatalf("missing timestamp should render empty, got %q", got)
	}
	if got := displayTime(core.Message{HasTime: true, Time: 0}); got != "" {
		t.Fatalf("zero timestamp should render empty, got %q", got)
	}

	got := displayTime(core.Message{HasTime: true, Time: 1700000000})
	want := regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}$`)
	if !want.MatchString(got) {
		t.Fatalf("unexpected timestamp format: %q", got)
	}
}
