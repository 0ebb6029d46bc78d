// Package sparql composes SPARQL 1.1 update and query text from typed
// fragments.
//
// Fragments nest: an update holds one or more operations, each operation
// holds insert/delete templates and a where clause, and every clause may hold
// graph blocks, groups, unions and raw text. Builders only concatenate text;
// nothing here parses or validates the result. A malformed fragment is caught
// when the store rejects the request.
//
// Operations inside one update request are separated by ";". The number of
// operations already emitted lives in a Clauses value owned by the
// transaction and shared by pointer, so independently built updates can be
// concatenated and still carry correct separators.
//
// Parameters are written as ?_name tokens and substituted at render time
// with escaped literals, validated IRIs or typed literals (see Params).
package sparql
