package common

import (
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Suspender configuration struct
// --------------------------------------------------------------------------

// SuspenderConfig holds the configuration parameters of a memory suspender.
// Values outside the supported ranges are clamped by the suspender, never rejected.
type SuspenderConfig struct {
	// number of independently locked divisions (4..256)
	DivisionCount int

	// restorer sleep times
	RestorerSleepAfterUsefulWork time.Duration
	RestorerSleepAfterIdleWork   time.Duration

	// Logging configuration
	LogLevel string

	// address to serve metrics on (empty = disabled)
	MetricsEndpoint string
}

// String returns a formatted string representation of the configuration
func (c *SuspenderConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-26s: %s\n", name, value))
	}

	addSection("Suspender")
	addField("Divisions", fmt.Sprintf("%d", c.DivisionCount))

	addSection("Restorer")
	addField("Sleep After Useful Sweep", c.RestorerSleepAfterUsefulWork.String())
	addField("Sleep After Idle Sweep", c.RestorerSleepAfterIdleWork.String())

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Metrics")
	if c.MetricsEndpoint == "" {
		addField("Endpoint", "disabled")
	} else {
		addField("Endpoint", c.MetricsEndpoint)
	}

	return sb.String()
}
