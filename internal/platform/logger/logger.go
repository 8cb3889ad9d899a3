package logger

import (
	"log"
	"os"
)

// New returns the process-wide stdout logger. UTC timestamps so logs line up
// with the UTC download times in storage.
func New() *log.Logger {
	return log.New(os.Stdout, "", log.LstdFlags|log.LUTC)
}
