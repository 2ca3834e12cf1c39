// Package policy builds and serves the in-memory retrieval index over
// organizational policy documents. Documents are chunked on heading
// boundaries, embedded once per process start (with a persistent
// content-hash cache to skip unchanged files), and queried by cosine
// similarity. The index is immutable after build and safe for concurrent
// reads.
package policy
