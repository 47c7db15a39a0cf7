// Package logging is a thin wrapper of zap logging library.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is the prefix of environment variables that select log levels.
//  RXSTEER_LOG=D            applies to every package
//  RXSTEER_LOG_hashrxq=W    applies to package "hashrxq" only
const EnvPrefix = "RXSTEER_LOG"

var (
	root = func() *zap.Logger {
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			os.Stderr,
			zap.DebugLevel,
		)
		return zap.New(core)
	}()

	levelsLock sync.Mutex
	levels     = map[string]zap.AtomicLevel{}
)

// New creates a logger initialized with configured log level.
//
// By codebase convention, this should appear in the same .go file as the package docstring:
//  var logger = logging.New("Foo")
func New(pkg string) *zap.Logger {
	return root.Named(pkg).WithOptions(zap.IncreaseLevel(Level(pkg)))
}

// Level returns the adjustable log level of a package.
func Level(pkg string) zap.AtomicLevel {
	levelsLock.Lock()
	defer levelsLock.Unlock()
	al, ok := levels[pkg]
	if !ok {
		al = zap.NewAtomicLevelAt(ParseLevel(envLevel(pkg)))
		levels[pkg] = al
	}
	return al
}

// SetLevel changes the log level of a package.
// input is a level letter, such as "D" or "WARN".
func SetLevel(pkg, input string) {
	Level(pkg).SetLevel(ParseLevel(input))
}

// ParseLevel interprets a level letter.
// V and D select debug; I info; W warn; E error; F and N suppress all but fatal conditions.
// Unrecognized input selects info.
func ParseLevel(input string) zapcore.Level {
	if input == "" {
		return zapcore.InfoLevel
	}
	switch strings.ToUpper(input)[0] {
	case 'V', 'D':
		return zapcore.DebugLevel
	case 'W':
		return zapcore.WarnLevel
	case 'E':
		return zapcore.ErrorLevel
	case 'F', 'N':
		return zapcore.DPanicLevel
	}
	return zapcore.InfoLevel
}

func envLevel(pkg string) string {
	v, ok := os.LookupEnv(EnvPrefix + "_" + pkg)
	if !ok {
		v = os.Getenv(EnvPrefix)
	}
	return v
}
