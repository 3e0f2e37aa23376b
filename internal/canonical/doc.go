// Package canonical produces a stable, order-independent text form of
// semi-structured values so that two logically equal values compare equal
// as strings.
//
// The output is RFC 8785 style canonical JSON with a few deliberate rules
// on top:
//   - Object keys are sorted by UTF-16 code units (not UTF-8 bytes)
//   - Object members whose value is null are dropped, so an absent key and
//     an explicit null are indistinguishable
//   - Array order is preserved; null array elements are kept in place
//   - Strings are NFC normalized and never HTML escaped
//   - Numbers are normalized: integral values print without a fraction,
//     so 2, 2.0 and json.Number("2") all render as 2
//   - time.Time values render as UTC RFC 3339 with nanoseconds
//
// The package is pure: it has no dependency on storage or the engine and
// holds no state.
package canonical
