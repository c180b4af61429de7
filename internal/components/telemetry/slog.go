package telemetry

import (
	"io"
	"log/slog"
	"strconv"
)

// SlogAPI writes reports to Logger, or to the default slog logger when
// Logger is nil.
type SlogAPI struct {
	Logger *slog.Logger
}

func (s SlogAPI) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// attrs turns positional params into "p0", "p1" ... attributes.
func attrs(params []any) []any {
	out := make([]any, 0, len(params))
	for i, p := range params {
		out = append(out, slog.Any("p"+strconv.Itoa(i), p))
	}
	return out
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	s.logger().With("id", id).Error("broken", attrs(params)...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	s.logger().With("id", id).Warn("unexpected", attrs(params)...)
}

func (s SlogAPI) ReportDebug(msg string, params ...any) {
	s.logger().Debug(msg, attrs(params)...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	s.logger().Debug("gauge", "id", id, "value", count)
}

// InitSlog makes a text handler on out the default logger. Debug records
// are dropped unless verbose is set.
func InitSlog(out io.Writer, verbose bool) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, opts)))
}
