package cliconfig

import (
	"github.com/rs/zerolog"

	logAdapter "github.com/bft-labs/migchan/internal/adapters/log"
)

// Logger returns a console logger at the given level. An unparsable level
// falls back to info.
func Logger(level string) *logAdapter.ZerologAdapter {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logAdapter.NewZerologAdapter(lvl)
}
