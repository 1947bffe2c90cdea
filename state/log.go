package state

import (
	cosmoslog "cosmossdk.io/log"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// IavlLogger bridges the node's cometbft logger into the cosmossdk.io
// logger iavl expects.
type IavlLogger struct {
	logger cmtlog.Logger
}

func NewIavlLogger(lg cmtlog.Logger) cosmoslog.Logger {
	return IavlLogger{logger: lg}
}

func (l IavlLogger) Info(msg string, keyVals ...any) {
	l.logger.Info(msg, keyVals...)
}

func (l IavlLogger) Error(msg string, keyVals ...any) {
	l.logger.Error(msg, keyVals...)
}

func (l IavlLogger) Debug(msg string, keyVals ...any) {
	l.logger.Debug(msg, keyVals...)
}

func (l IavlLogger) With(keyVals ...any) cosmoslog.Logger {
	return IavlLogger{l.logger.With(keyVals...)}
}

func (l IavlLogger) Impl() any {
	return l.logger
}
