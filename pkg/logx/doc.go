// Package logx configures funnelbot's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep
// console output readable (short timestamp + short caller) while handlers
// attach structured fields the same way everywhere.
package logx
