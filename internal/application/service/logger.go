// Package service holds the fee voucher use cases: fee structures, roster
// lookups, voucher issuance and the payment proof decision flow.
package service

// Logger is what the services log through. The container adapts zap to it;
// keys and values alternate as in zap's SugaredLogger.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
