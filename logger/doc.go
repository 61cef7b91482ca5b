// Package logger provides structured logging for meshkit built on zerolog.
//
// Every meshkit component takes a *Logger and tags its output with a
// component field, so a single service log can be filtered per concern
// (registry, breaker, caller, lifecycle, broker).
package logger
