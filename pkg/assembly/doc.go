/*
Package assembly builds a single output file from a template and a manifest
of fragment files. Each manifest entry names a placeholder token and the
fragment whose full text replaces every occurrence of that token.

Substitution is exact, case-sensitive and non-recursive: fragment text that
has been inserted is never searched for tokens again. NewManifest rejects
duplicate tokens, tokens contained in other tokens and tokens whose end is
the start of another token, so no two occurrences in a template can share
characters and the assembled document does not depend on the order of the
manifest entries.

The template and fragments are treated as opaque text.
*/
package assembly
