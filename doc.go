// Package littleexport packages heterogeneous client-side state into a
// single portable, optionally encrypted archive, and reconstructs that
// state from the archive.
//
// An archive is a USTAR container compressed with gzip. When a password
// is supplied the compressed container is additionally wrapped in a
// chunked authenticated-encryption layer (AES-256-GCM with a
// PBKDF2-derived key). Both directions operate as a single back-pressured
// stream: payloads of unbounded size pass through without the archive
// ever being materialized in memory.
//
// State categories (storage dumps, record batches, cache entries, custom
// items, raw file trees) are produced and consumed by collaborators
// implementing the Source and Consumer interfaces; each collaborator owns
// one path prefix inside the container (see the Area constants).
package littleexport
