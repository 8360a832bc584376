// Package modules contains the built-in modules: file sources and sinks, markup
// transforms, metadata helpers and the nested-execution modules that run a child
// chain and fold its outputs back into the outer documents.
//
// Modules can be composed in code or declared by type name through a Registry:
//
//	reg := modules.NewRegistry(modules.Env{Source: src, Writer: w})
//	m, err := reg.Build(modules.Spec{Type: "render_markdown"})
package modules
