package annotations

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd()) && !color.NoColor
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
	}
}

// Handle implements Handler - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case PlanParsed:
		return fmt.Sprintf("%s Parsed %s plan %s",
			latency,
			event.Data["dialect"],
			f.colorize(fmt.Sprint(event.Data["plan"]), color.FgCyan))

	case PlanConverted:
		return fmt.Sprintf("%s Converted to %s",
			latency,
			f.colorizeCount("operators", intValue(event.Data["operator.count"])))

	case PipelinesAssigned:
		return fmt.Sprintf("%s Partitioned into %s",
			latency,
			f.colorizeCount("pipelines", intValue(event.Data["pipeline.count"])))

	case TimingAnnotated:
		return fmt.Sprintf("%s Timed %d of %d operators",
			latency,
			intValue(event.Data["timed.count"]),
			intValue(event.Data["operator.count"]))

	case OperatorUnrecognized:
		return fmt.Sprintf("%s %s Unrecognized operator %q at #%d, treated as select",
			latency,
			f.colorize("⚠️", color.FgYellow),
			event.Data["node.type"],
			intValue(event.Data["operator.id"]))

	case OperatorPlaceholder:
		return fmt.Sprintf("%s Missing child of #%d replaced by placeholder #%d",
			latency,
			intValue(event.Data["parent.id"]),
			intValue(event.Data["operator.id"]))

	case StageFallback:
		return fmt.Sprintf("%s %s Stage of #%d (%s) fell back to %s",
			latency,
			f.colorize("⚠️", color.FgYellow),
			intValue(event.Data["operator.id"]),
			event.Data["operator"],
			event.Data["stage"])

	case CacheHit:
		return fmt.Sprintf("%s Cache hit for %s", latency, event.Data["plan"])

	case BatchPlanCompleted:
		if success, _ := event.Data["success"].(bool); !success {
			return fmt.Sprintf("%s %s %s failed: %v",
				latency,
				f.colorize("✗", color.FgRed),
				event.Data["plan"],
				event.Data["error"])
		}
		return fmt.Sprintf("%s %s %s done with %s",
			latency,
			f.colorize("✓", color.FgGreen),
			event.Data["plan"],
			f.colorizeCount("pipelines", intValue(event.Data["pipeline.count"])))

	case BatchCompleted:
		return fmt.Sprintf("%s %s Processed %s, %d failed",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("plans", intValue(event.Data["plan.count"])),
			intValue(event.Data["failure.count"]))

	default:
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	switch label {
	case "pipelines":
		return color.CyanString(text)
	case "operators":
		return color.MagentaString(text)
	default:
		return color.BlueString(text)
	}
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

func intValue(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// StderrHandler creates a handler that prints formatted events to stderr.
func StderrHandler() Handler {
	return NewOutputFormatter(os.Stderr).Handle
}

// isTerminal checks if the file descriptor is stdout or stderr.
func isTerminal(fd uintptr) bool {
	return fd == uintptr(1) || fd == uintptr(2)
}
