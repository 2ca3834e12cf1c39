// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer MailflowLogger with contextual
// helpers (component, email, stage) and domain specific logging helpers for
// workflow stages and model calls.
package logging
