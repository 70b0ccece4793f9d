// Package formula extracts field references from calculated-field formulas
// and sheet captions.
//
// Only the tokens the dependency engine needs are recognized. Everything else
// in the formula language (functions, operators, literals) is skipped.
//
// # Lexical Rules
//
//   - A reference is delimited by "[" and "]". Inside a reference "]]" stands
//     for a literal "]" and a backslash escapes the following character, so
//     "[Revenue\]Q1]" names the field "Revenue]Q1".
//   - "[source].[field]" is a single qualified reference.
//   - Text inside "..." or '...' string literals is never scanned; a doubled
//     quote inside a literal is an escaped quote.
//   - "//" starts a comment that runs to the end of the line.
//   - A "{" outside literals and comments marks a level-of-detail expression.
//
// # Recovery
//
// [Scan] never fails. An unterminated reference at the end of the text is
// dropped and reported as an [Issue]; an unterminated string literal
// swallows the rest of the text and is reported the same way.
//
// # Usage
//
//	res := formula.Scan("SUM([Profit]) / SUM([Orders].[Sales])")
//	for _, ref := range res.References {
//	    fmt.Println(ref.Source, ref.Name)
//	}
package formula
