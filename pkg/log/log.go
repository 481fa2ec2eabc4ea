// Package log configures the structured logger shared by every package in
// the ingress capacity controller. It wraps a zap core behind the logr.Logger
// interface so that controller-runtime, client-go, and our own reconcilers
// all log through the same sink and verbosity level.
package log

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	crlog "sigs.k8s.io/controller-runtime/pkg/log"
)

// CurrentLogLevel is the atomic level backing Logger. Adjusting it changes
// the verbosity of every logger derived via WithName without restarting the
// process.
var CurrentLogLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

// Logger is the root logger for the process. Packages should derive their
// own named logger from it: var log = logf.Logger.WithName("reconciler").
var Logger logr.Logger

func init() {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(zapcore.AddSync(os.Stdout)), CurrentLogLevel)
	zapLog := zap.New(core, zap.AddCaller())
	Logger = zapr.NewLogger(zapLog)
}

// SetRuntimeLogger wires the given logger into controller-runtime so that
// manager, cache, and client machinery log through the same sink.
func SetRuntimeLogger(l logr.Logger) {
	crlog.SetLogger(l)
}
