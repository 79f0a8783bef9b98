package logger

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// slogBridge forwards slog records to zerolog so the service logs through
// one sink while packages depend only on *slog.Logger.
type slogBridge struct {
	sink   *zerolog.Logger
	fields []slog.Attr
}

// NewSlog wraps a zerolog logger in an slog front end. Context fields set
// via WithRequestID/WithSource/WithComponent surface on every record.
func NewSlog(sink *zerolog.Logger) *slog.Logger {
	return slog.New(&slogBridge{sink: sink})
}

func (b *slogBridge) Enabled(context.Context, slog.Level) bool {
	return true
}

func (b *slogBridge) Handle(ctx context.Context, r slog.Record) error {
	ev := b.eventFor(ctx, r.Level)
	for _, f := range b.fields {
		ev = appendField(ev, f)
	}
	r.Attrs(func(f slog.Attr) bool {
		ev = appendField(ev, f)
		return true
	})
	ev.Msg(r.Message)
	return nil
}

func (b *slogBridge) eventFor(ctx context.Context, level slog.Level) *zerolog.Event {
	base := FromContext(ctx, b.sink)
	switch {
	case level <= slog.LevelDebug:
		return base.Debug()
	case level >= slog.LevelError:
		return base.Error()
	case level >= slog.LevelWarn:
		return base.Warn()
	default:
		return base.Info()
	}
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &slogBridge{sink: b.sink}
	next.fields = append(append(next.fields, b.fields...), attrs...)
	return next
}

func (b *slogBridge) WithGroup(string) slog.Handler { return b }

func appendField(ev *zerolog.Event, f slog.Attr) *zerolog.Event {
	f.Value = f.Value.Resolve()
	switch f.Value.Kind() {
	case slog.KindString:
		return ev.Str(f.Key, f.Value.String())
	case slog.KindInt64:
		return ev.Int64(f.Key, f.Value.Int64())
	case slog.KindUint64:
		return ev.Uint64(f.Key, f.Value.Uint64())
	case slog.KindFloat64:
		return ev.Float64(f.Key, f.Value.Float64())
	case slog.KindBool:
		return ev.Bool(f.Key, f.Value.Bool())
	case slog.KindDuration:
		return ev.Str(f.Key, f.Value.Duration().String())
	case slog.KindTime:
		return ev.Time(f.Key, f.Value.Time())
	default:
		return ev.Interface(f.Key, f.Value.Any())
	}
}
