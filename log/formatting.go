package log

import (
	"fmt"
	"sync"
)

var (
	counter     uint16
	counterLock sync.Mutex
)

const (
	maxCount   uint16 = 999
	rightArrow        = "▶"
)

const (
	colorRed     = "\033[31m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorEnd     = "\033[0m"
)

func (s Severity) String() string {
	switch s {
	case TraceLevel:
		return "TRAC"
	case DebugLevel:
		return "DEBU"
	case InfoLevel:
		return "INFO"
	case WarningLevel:
		return "WARN"
	case ErrorLevel:
		return "ERRO"
	case CriticalLevel:
		return "CRIT"
	default:
		return "NONE"
	}
}

func (s Severity) color() string {
	switch s {
	case DebugLevel:
		return colorCyan
	case InfoLevel:
		return colorBlue
	case WarningLevel:
		return colorYellow
	case ErrorLevel:
		return colorRed
	case CriticalLevel:
		return colorMagenta
	default:
		return ""
	}
}

func formatLine(line *logLine, colored bool) string {
	colorStart := ""
	colorStop := ""
	if colored && line.level.color() != "" {
		colorStart = line.level.color()
		colorStop = colorEnd
	}

	counterLock.Lock()
	counter++
	if counter > maxCount {
		counter = 1
	}
	count := counter
	counterLock.Unlock()

	if line.line == 0 {
		return fmt.Sprintf("%s%s ? %s %s %03d%s %s", colorStart, line.timestamp.Format("060102 15:04:05.000"), rightArrow, line.level.String(), count, colorStop, line.msg)
	}

	fLen := len(line.file)
	fPartStart := fLen - 10
	if fPartStart < 0 {
		fPartStart = 0
	}
	return fmt.Sprintf("%s%s %s:%03d %s %s %03d%s %s", colorStart, line.timestamp.Format("060102 15:04:05.000"), line.file[fPartStart:], line.line, rightArrow, line.level.String(), count, colorStop, line.msg)
}
