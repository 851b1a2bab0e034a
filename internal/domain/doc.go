// Package domain models the civic-operations feeds published by the city
// operations centre and the state derived from them.
//
// # Data Source
//
// Every feed is an independent HTTP resource. Most are plain text, one record
// per line, fields separated by ';'. The events feed is a JSON document with a
// single array field. Feeds whose content is human-readable (alerts, traffic,
// sirens, events) accept a "lang" query parameter; numeric feeds do not.
//
// # Text Conventions
//
// The upstream separator scheme cannot carry a literal newline or ';' inside a
// field, so the publisher writes placeholder words instead:
//
//	"pulalinha"      →  "\n"
//	"pontoevirgula"  →  ";"
//
// Placeholders are matched case-insensitively. Lines are split on real
// newlines first, then on ';', and only then are placeholders expanded inside
// each field (newline first). Expanding after the split keeps an escaped ';'
// from creating a spurious field.
//
// Numbers may use ',' or '.' as the decimal separator and are sometimes wrapped
// in whitespace or quotes, e.g. ` "12,5" `.
//
// Malformed lines (too few fields, unparsable required number) are dropped
// silently. A feed with no usable line at all reports [ErrParsingFailed].
//
// # Rain Gauge Status
//
// Gauges report a free-text status. Anything mentioning a delay ("atraso",
// "atrasado", "delayed", "stale") is treated as [GaugeStale]; everything else as
// [GaugeCurrent]. Stale gauges are ignored when computing the rain level used by
// [ClassifyScene].
//
// # Snapshots
//
// A [Snapshot] is built once per aggregation cycle from one [FeedResult] per
// feed and is never mutated after publication. Readers may share it freely.
package domain
