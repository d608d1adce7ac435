// Package logx wraps zerolog behind a tiny structured-logging API.
//
// The monitor is a short-lived process, so there is no dynamic sink
// reconfiguration: sinks are chosen once at startup from config and the
// Logger value is passed down explicitly. The zero value is a safe no-op.
package logx
