// Package export renders generated report envelopes into downloadable
// formats.
//
// Three formats are supported: JSON (the envelope as-is), CSV (metadata
// header rows followed by a per-key traversal of the payload) and Document
// (heading and paragraph text blocks mirroring the same traversal, ready
// for a document renderer). Formatter failures return errors; callers
// translate them into user-visible export failures.
//
// Rendered artifacts can optionally be uploaded to S3 via ArtifactStore.
package export
