// Package selection converts between explicit episode lists and the compact
// selection strings accepted by the job service.
//
// The canonical grammar is "ALL", a single episode ("7"), or comma-joined
// ascending runs ("1-3,5"). Encode produces it, Parse reads it back, and
// BuildRange turns an interactive from/to pair into the subset of episodes the
// service reported as available. Richer strings such as "S1E1-6" or
// "ALLSEASONS" belong to the service's resolver and are passed through
// untouched; Parse reports them with ErrOpaque.
//
// Every function here is pure and safe to call from a render path.
package selection
