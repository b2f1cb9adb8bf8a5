// Package catalogs registers the target field catalogs with the core registry.
// Import this package for its side effects.
package catalogs

// Each catalog file registers itself in init().
