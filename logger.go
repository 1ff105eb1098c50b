package match

import (
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger allows setting a custom logger.
// Engines created afterwards pick it up unless WithLogger is given.
func SetLogger(l *slog.Logger) {
	logger = l
}
