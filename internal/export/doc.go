// Package export turns traced or compiled graphs into interchange
// models: a lowering pass rewrites source operations into the target
// namespace through a rule registry, a validator checks the result
// against the target conventions, and an encoder produces the
// versioned wire form.
package export
