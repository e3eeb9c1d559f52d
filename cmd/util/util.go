package util

import (
	"strings"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/common"
	"github.com/ValentinKolb/dSuspend/lib/suspender/mem"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by the CLI
	EnvPrefix = "dsuspend"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupSuspenderFlags adds the flags configuring a memory suspender to a command
func SetupSuspenderFlags(cmd *cobra.Command) {
	key := "divisions"
	cmd.PersistentFlags().Int(key, mem.DefaultDivisionCount, WrapString("Number of independently locked divisions of the suspender (clamped to 4..256)"))

	key = "restorer-sleep-useful"
	cmd.PersistentFlags().Duration(key, mem.DefaultRestorerSleepAfterUsefulWork, WrapString("How long the restorer sleeps after a sweep that restored objects (clamped to 0..10s)"))

	key = "restorer-sleep-idle"
	cmd.PersistentFlags().Duration(key, mem.DefaultRestorerSleepAfterIdleWork, WrapString("How long the restorer sleeps after a sweep that restored nothing (clamped to 0..60s)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "metrics-endpoint"
	cmd.PersistentFlags().String(key, "", WrapString("Optional address on which the suspender metrics are served in the Prometheus text format (e.g. localhost:9090)"))
}

// InitConfig initializes configuration from env files and environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetSuspenderConfig reads the suspender configuration from viper
func GetSuspenderConfig() *common.SuspenderConfig {
	return &common.SuspenderConfig{
		DivisionCount:                viper.GetInt("divisions"),
		RestorerSleepAfterUsefulWork: getDuration("restorer-sleep-useful"),
		RestorerSleepAfterIdleWork:   getDuration("restorer-sleep-idle"),
		LogLevel:                     viper.GetString("log-level"),
		MetricsEndpoint:              viper.GetString("metrics-endpoint"),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// getDuration reads a duration, a plain number is taken as milliseconds (e.g. DSUSPEND_RESTORER_SLEEP_IDLE=250)
func getDuration(key string) time.Duration {
	raw := strings.TrimSpace(viper.GetString(key))
	if raw != "" && strings.Trim(raw, "0123456789") == "" {
		return time.Duration(viper.GetInt64(key)) * time.Millisecond
	}
	return viper.GetDuration(key)
}
