// Package rule matches tasks against regex patterns and expands them into
// output descriptors by rendering templates.
//
// A [Rule] extracts properties from the named capture groups of its pattern.
// When the rule declares property sources, every property map fetched from a
// [Source] is merged with the extracted properties (which take precedence)
// and rendered into its own [Result]. Results of different sources are
// concatenated, never cross-multiplied.
//
// A [Set] holds the ordered rules of one input queue.
package rule
