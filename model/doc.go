// Package model defines the minimal language-model and embedding interfaces
// consumed by the triage, compose and policy packages, together with mock
// implementations for tests. Provider adapters live in the openai and
// anthropic subpackages.
package model
