// Package api defines the core types of the grafo runtime: keyed state with
// reducer merge semantics, node and edge descriptors, the tagged result sum
// nodes return, the compiled Graph, the checkpoint Store contract, and the
// Observer lifecycle interface.
//
// Most programs import the root grafo package, which re-exports everything
// here and adds the builder DSL; api is the stable home for the types
// themselves and for custom Store, Observer, ChatModel and Tool
// implementations.
package api
