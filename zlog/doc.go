// Package zlog provides a logiface backend, built on stdlib encoding/json
// alone, that writes newline-delimited JSON; it is the default logger
// throughout flowpipe.
package zlog
