package pipeline

import (
	"os"

	"github.com/rs/zerolog"
)

// cleanup deletes temporary audio artifacts. run is idempotent — paths are
// forgotten once attempted — and deletion failures are logged, never
// surfaced, so cleanup can't mask the primary result. Already-deleted
// files are not an error.
type cleanup struct {
	paths []string
	log   zerolog.Logger
}

func newCleanup(log zerolog.Logger) *cleanup {
	return &cleanup{log: log}
}

func (c *cleanup) add(path string) {
	c.paths = append(c.paths, path)
}

func (c *cleanup) run() {
	for _, path := range c.paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.log.Warn().Err(err).Str("path", path).Msg("failed to remove temp audio file")
		} else {
			c.log.Debug().Str("path", path).Msg("removed temp audio file")
		}
	}
	c.paths = nil
}
