package heatmap

import (
	"log/slog"
	"sync/atomic"
)

// silent discards every record. Its handler reports every level disabled,
// so log calls on the hot render path build no attributes.
var silent = slog.New(slog.DiscardHandler)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(silent)
}

// SetLogger routes the package's log output to l. A nil l silences it
// again, which is also the initial state. SetLogger may be called while
// tiles are rendering.
//
// Records emitted per level:
//   - [slog.LevelDebug]: tile cache hits and misses, empty point sets,
//     tiles rendered for a superseded data version
//   - [slog.LevelInfo]: cache invalidations after a point update or
//     [Renderer.Invalidate]
//   - [slog.LevelWarn]: invalid viewports and failed renders
//
// The tile server and the point store log through the same logger:
//
//	heatmap.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = silent
	}
	logger.Store(l)
}

// Logger returns the logger set by SetLogger.
func Logger() *slog.Logger {
	return logger.Load()
}
