// Package gdrive implements the extraction backend on Google Drive's built-in
// OCR: an image uploaded with the Google Docs MIME type is converted to a
// document, whose plain-text export is the recognized text.
//
// Drive and transport errors are classified into services.ErrTransient
// (rate limits, 5xx, timeouts, dropped connections) and services.ErrPermanent
// (everything else) so the extraction client knows what to retry.
package gdrive
