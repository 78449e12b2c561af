package logger

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once sync.Once
	log  zerolog.Logger
)

// Get returns the process logger. The first call decides the level:
// Get(true) switches on debug output in a human readable form.
func Get(debug ...bool) zerolog.Logger {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339
		if len(debug) > 0 && debug[0] {
			log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
				Level(zerolog.DebugLevel).
				With().Timestamp().Caller().Logger()
			return
		}
		log = zerolog.New(os.Stdout).
			Level(zerolog.InfoLevel).
			With().Timestamp().Logger()
	})
	return log
}
