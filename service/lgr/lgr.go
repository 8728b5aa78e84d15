package lgr

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mdobak/go-xerrors"
	"github.com/natefinch/lumberjack"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the process wide logger. It starts as a text logger on stdout and is replaced by
// Init once the configuration is known.
var Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{ReplaceAttr: replaceAttr}))

type Options struct {
	Level   string // debug, info, warn, error
	Dev     bool   // coloured text output instead of JSON
	File    string // optional rotated log file
	Console io.Writer
}

type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

func Init(opts Options) {
	Logger = New(opts)
	slog.SetDefault(Logger)
}

func New(opts Options) *slog.Logger {
	var out io.Writer = os.Stdout
	if opts.Console != nil {
		out = opts.Console
	}

	if opts.File != "" {
		out = io.MultiWriter(out, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: replaceAttr,
	}

	if opts.Dev {
		handlerOpts.ReplaceAttr = devReplaceAttr
		return slog.New(slog.NewTextHandler(out, handlerOpts))
	}

	return slog.New(slog.NewJSONHandler(out, handlerOpts))
}

// FromContext returns the logger enriched with the trace and span ids carried by ctx, if any.
func FromContext(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return Logger
	}
	return Logger.With(
		slog.String("traceID", sc.TraceID().String()),
		slog.String("spanID", sc.SpanID().String()),
	)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindAny {
		if err, ok := a.Value.Any().(error); ok {
			a.Value = fmtErr(err)
		}
	}
	return a
}

func devReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && len(groups) == 0 {
		level, ok := a.Value.Any().(slog.Level)
		if ok {
			a.Value = slog.StringValue(colorLevel(level))
		}
		return a
	}
	return replaceAttr(groups, a)
}

func colorLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return color.RedString(level.String())
	case level >= slog.LevelWarn:
		return color.YellowString(level.String())
	case level >= slog.LevelInfo:
		return color.GreenString(level.String())
	default:
		return color.CyanString(level.String())
	}
}

func fmtErr(err error) slog.Value {
	groupValues := []slog.Attr{slog.String("msg", err.Error())}

	if frames := marshalStack(err); frames != nil {
		groupValues = append(groupValues, slog.Any("trace", frames))
	}

	return slog.GroupValue(groupValues...)
}

func marshalStack(err error) []stackFrame {
	st := xerrors.StackTrace(err)
	if len(st) == 0 {
		return nil
	}

	frames := st.Frames()
	s := make([]stackFrame, len(frames))
	for i, v := range frames {
		s[i] = stackFrame{
			Source: filepath.Join(filepath.Base(filepath.Dir(v.File)), filepath.Base(v.File)),
			Func:   filepath.Base(v.Function),
			Line:   v.Line,
		}
	}

	return s
}
