// Package logx provides a small structured logging facade over zerolog.
//
// Components receive a Logger scoped with a "comp" field; the Service owns the
// sinks (console, file) and can swap levels/outputs at runtime via Apply().
package logx
