// Package logging provides the server's structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON lines on stdout
//   - Development (LOG_DEV=true): colored console output on stderr
//
// Subsystems take a named child logger through Component, and everything
// scoped to one workspace goes through Workspace so entries carry the
// workspace id. The level can be changed at runtime with SetLevel.
//
// Server logs are separate from a workspace's console log, which is the
// user-facing log of messages exchanged with the preview.
//
// Example Usage:
//
//	logger, err := logging.New(logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development))
//	logger.Component("http").Info("Server starting", zap.String("addr", cfg.Addr()))
package logging
