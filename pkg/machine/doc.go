// Package machine decodes Packer's machine-readable output stream into typed
// messages and folds them into per-command results.
//
// # Machine-Readable Format
//
// # Overview
//
// Packer, when invoked with -machine-readable, emits one record per line on
// stdout. Builders run in parallel inside Packer, so records belonging to
// different builders interleave line by line.
//
// Goals of this package:
//
//  1. Decode the comma-delimited, escaped wire format without assuming a
//     fixed field count
//  2. Tolerate message types introduced by newer Packer versions
//  3. Demultiplex the interleaved stream per build target
//  4. Fold an unbounded stream into a bounded, queryable result per command
//
// # Format Specification
//
// Each line follows this format:
//
//	timestamp,target,type,data...
//
// # Fields
//
//   - timestamp: Decimal Unix timestamp in seconds, as reported by Packer
//     (not receipt time). An unparsable timestamp decodes to the zero time.
//   - target: Name of the builder the record belongs to. Empty for records
//     that are global to the whole run.
//   - type: Lowercase, hyphenated message type tag. For example: artifact,
//     ui, error, template-provisioner, end-builds, version.
//   - data...: Zero or more type-specific payload fields.
//
// # Escaping
//
// Field values may contain the delimiter and newlines. Packer escapes them
// in-band so that every record survives single-line transport:
//
//   - a literal comma is written as %!(PACKER_COMMA)
//   - a literal newline is written as \n, a carriage return as \r, and a
//     literal backslash as \\
//
// An unterminated escape (a %!( with no closing parenthesis, or a line
// ending in a lone backslash) is a decode error for that line only; the
// session continues with the next line. An unknown %!(...) token is kept
// verbatim for forward compatibility.
//
// # Examples
//
// Example 1: An artifact produced by the docker builder
//
//	1609459200,docker,artifact,0,id-123,/out/image.tar
//
// Example 2: A global error whose text contains a comma
//
//	1609459200,,error,template: missing key%!(PACKER_COMMA) aborting
//
// Example 3: Interleaved output from two parallel builders
//
//	1609459200,docker,ui,say,Build 'docker' starting
//	1609459200,qemu,ui,say,Build 'qemu' starting
//	1609459205,docker,artifact,0,id-123,/out/image.tar
//	1609459209,qemu,artifact,0,id-456,/out/disk.qcow2
package machine
