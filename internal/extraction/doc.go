// Package extraction turns one page image into text through a remote
// recognition backend.
//
// Client.Extract runs the backend's upload, read-back and delete sequence.
// Errors tagged services.ErrTransient are retried without limit using
// exponential backoff with jitter; anything else is returned after a single
// attempt. The remote copy is always deleted once an upload succeeded, and a
// delete failure is logged rather than returned. Extracted text passes through
// Normalize before it is handed back.
package extraction
