package common

import (
	"strings"
	"testing"
	"time"

	"github.com/lni/dragonboat/v4/logger"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	}

	for in, expected := range tests {
		got, err := ParseLogLevel(in)
		if err != nil {
			t.Errorf("ParseLogLevel(%q) returned error: %v", in, err)
		}
		if got != expected {
			t.Errorf("ParseLogLevel(%q) = %v, expected %v", in, got, expected)
		}
	}

	if _, err := ParseLogLevel("verbose"); err == nil {
		t.Error("ParseLogLevel should fail for unknown levels")
	}
}

func TestInitLoggers(t *testing.T) {
	if err := InitLoggers("debug"); err != nil {
		t.Fatalf("InitLoggers returned error: %v", err)
	}
	if err := InitLoggers("nope"); err == nil {
		t.Error("InitLoggers should fail for unknown levels")
	}
	// reset for other tests
	_ = InitLoggers("info")
}

func TestSuspenderConfigString(t *testing.T) {
	c := SuspenderConfig{
		DivisionCount:                64,
		RestorerSleepAfterUsefulWork: 0,
		RestorerSleepAfterIdleWork:   time.Second,
		LogLevel:                     "info",
	}

	out := c.String()
	for _, expected := range []string{"SUSPENDER", "RESTORER", "64", "1s", "disabled"} {
		if !strings.Contains(out, expected) {
			t.Errorf("Config string should contain %q:\n%s", expected, out)
		}
	}
}
