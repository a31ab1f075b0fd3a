// Package engine implements a Make-inspired build graph: a rule registry, a
// pattern-matching resolver, a recursive executor with a per-invocation
// completion barrier, and a worker pool that shell commands enqueued by
// recipes run on.
//
// The engine never imports a scripting language. Recipes are an opaque
// Recipe interface; a host package (internal/script) compiles definition
// files and adapts the interpreter's callables to engine.Recipe.
package engine
