// Package timeparse extracts meeting times from free-form email text: the
// datetime extractor resolves natural-language expressions ("tomorrow at
// 2 PM", "next Tuesday") into timezone-qualified candidates, and the
// confirmation detector interprets replies that accept a previously
// suggested or freshly restated time.
package timeparse
