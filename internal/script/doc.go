// Package script compiles a small indentation-sensitive tensor
// language directly into IR graphs. The pipeline is conventional:
// a lexer that synthesizes INDENT/DEDENT/NEWLINE tokens, a
// precedence-climbing parser producing a generic tree with typed
// views, and a compiler that walks the tree emitting nodes.
//
// Free names are resolved through a host-supplied Resolver, and the
// environment holds Sugared values rather than raw graph values, so
// that modules, builtins and compile-time constants can flow through
// expressions and fail with positioned errors when used the wrong
// way.
package script
