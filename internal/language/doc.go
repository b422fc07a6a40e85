// Package language maps the language names users write in configuration to
// the traineddata codes Tesseract loads.
//
// Users may give an ISO 639-1 code ("ar"), an ISO 639-2 code in either its
// terminology or bibliographic form ("deu", "ger"), or an English word
// ("arabic"). Unknown values pass through unchanged so any installed
// traineddata file, including script models such as "script/Latin", remains
// usable.
package language
