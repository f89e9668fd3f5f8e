// Package toon implements TOON, a token-oriented object notation: a
// line-oriented, indentation-based text form of the JSON data model that
// minimizes tokenizer cost through bare strings, length-marked arrays and
// tabular encoding of uniform records.
//
// # Syntax
//
// Object field:       key: value
// Nested object:      key:            (children indented one level)
// Primitive array:    key[3]: 1,2,3
// Uniform records:    key[2]{id,name}:
//
//	1,Ada
//	2,Grace
//
// Mixed array:        key[2]:
//
//	- first
//	- 42
//
// Null:               null
// Bool:               true / false
// String:             bare words or "quoted string"
//
// Non-comma delimiters are declared in the array header after the length
// (for example tags[3|]: a|b|c) and apply to that array's cells and to
// tabular column headers.
//
// Encode and Decode are exact inverses for every JSON-model value.
package toon
