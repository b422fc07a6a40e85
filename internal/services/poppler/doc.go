// Package poppler drives the Poppler command line tools: pdfinfo reports page
// counts and pdftoppm renders single pages to PNG.
//
// Commands run through an Executor so tests can stub the binaries.
package poppler
