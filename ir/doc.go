// Package ir provides the portable representation of a sample space.
//
// This package contains the literal value model, the serialized document
// types, their JSON and YAML codecs, and canonical JSON used for sample
// identity. The space package builds on ir; ir imports nothing from this
// module. Backends and tools that only need to read or write documents can
// depend on ir alone.
//
// Key design constraints:
//   - Literals are sealed: IRString, IRInt, IRFloat and IRBool only
//   - Documents are ordered: dimension order survives every encoding
//   - IRInt and IRFloat stay distinct through JSON and YAML round trips
//   - All JSON keys use snake_case
package ir
