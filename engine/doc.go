// Package engine implements the per-email workflow state machine. It
// sequences the calendar, confirmation, triage and draft stages over the
// collaborator interfaces defined in core, enforcing the single side-effect
// chain and idempotency-label contract and classifying stage failures as
// pre-commit (retry next run) or post-commit (mark processed, log loudly).
package engine
