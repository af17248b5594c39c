// Package logx is a thin zerolog wrapper with live reconfiguration.
//
// Loggers handed out by a Service keep working after Apply() swaps the level
// or sinks, which is what the daemon's config hot reload relies on.
package logx
