package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tevino/abool"
)

// concept
/*
- Logging function:
  - check if level is active
  - send data to backend via big buffered channel
- Backend:
  - wait until there are logs waiting
  - write logs to the configured output
- Channel overbuffering protection:
  - if buffer is full, trigger write
- Before Start() is called, or after Shutdown(), log lines are dropped.
*/

// Severity describes a log level.
type Severity uint32

type logLine struct {
	msg       string
	level     Severity
	timestamp time.Time
	file      string
	line      int
}

// Log Levels.
const (
	TraceLevel    Severity = 1
	DebugLevel    Severity = 2
	InfoLevel     Severity = 3
	WarningLevel  Severity = 4
	ErrorLevel    Severity = 5
	CriticalLevel Severity = 6
)

var (
	logBuffer             = make(chan *logLine, 1024)
	forceEmptyingOfBuffer = make(chan struct{}, 1)

	logLevelInt = uint32(InfoLevel)
	logLevel    = &logLevelInt

	logsWaiting     = make(chan struct{}, 1)
	logsWaitingFlag = abool.New()

	started        = abool.New()
	startLock      sync.Mutex
	shutdownSignal chan struct{}
	shutdownWg     sync.WaitGroup

	outputLock sync.Mutex
	output     io.Writer = os.Stdout
	useColor             = abool.New()

	warnLogLines     = new(uint64)
	errLogLines      = new(uint64)
	criticalLogLines = new(uint64)
)

// SetLogLevel sets a new log level.
func SetLogLevel(level Severity) {
	atomic.StoreUint32(logLevel, uint32(level))
}

// GetLogLevel returns the current log level.
func GetLogLevel() Severity {
	return Severity(atomic.LoadUint32(logLevel))
}

// ParseLevel returns the level severity of a log level name.
func ParseLevel(level string) Severity {
	switch strings.ToLower(level) {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warning":
		return WarningLevel
	case "error":
		return ErrorLevel
	case "critical":
		return CriticalLevel
	}
	return 0
}

// SetOutput sets the writer log lines are written to. The default is stdout.
func SetOutput(w io.Writer) {
	outputLock.Lock()
	defer outputLock.Unlock()

	output = w
}

// EnableColors sets whether log lines are colored by severity.
func EnableColors(enable bool) {
	useColor.SetTo(enable)
}

// IsStarted returns whether the logging backend is running.
func IsStarted() bool {
	return started.IsSet()
}

// Start starts the logging backend. Calling Start on a running backend is a no-op.
func Start() error {
	startLock.Lock()
	defer startLock.Unlock()

	if started.IsSet() {
		return nil
	}

	shutdownSignal = make(chan struct{})
	shutdownWg.Add(1)
	go writer(shutdownSignal)

	started.Set()
	return nil
}

// Shutdown writes all pending log lines and stops the logging backend.
func Shutdown() {
	startLock.Lock()
	defer startLock.Unlock()

	if !started.SetToIf(true, false) {
		return
	}

	close(shutdownSignal)
	shutdownWg.Wait()
}

// TotalWarningLogLines returns the total amount of warning log lines since
// start of the program.
func TotalWarningLogLines() uint64 {
	return atomic.LoadUint64(warnLogLines)
}

// TotalErrorLogLines returns the total amount of error log lines since start
// of the program.
func TotalErrorLogLines() uint64 {
	return atomic.LoadUint64(errLogLines)
}

// TotalCriticalLogLines returns the total amount of critical log lines since
// start of the program.
func TotalCriticalLogLines() uint64 {
	return atomic.LoadUint64(criticalLogLines)
}
