// Package audit delivers authentication outcomes to pluggable sinks.
//
// [Dispatcher] is a buffered relay running one goroutine; [Sink]
// implementations cover a channel, JSON lines, log lines and fan-out.
// The package decides nothing about which events exist: the engine and
// its flows emit them.
//
// Audit events are streamed to sinks only. Nothing here persists them.
package audit
