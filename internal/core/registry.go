package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]Catalog)
	registryMu sync.RWMutex
)

// RegisterCatalog adds a target field catalog to the registry.
// Panics if the element type is already registered or field keys repeat.
func RegisterCatalog(c Catalog) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[c.ElementType]; exists {
		panic(fmt.Sprintf("catalog already registered: %s", c.ElementType))
	}

	seen := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if seen[f.Key] {
			panic(fmt.Sprintf("catalog %s: duplicate field key %s", c.ElementType, f.Key))
		}
		seen[f.Key] = true
		if f.Kind == FieldEnum && len(f.EnumValues) == 0 {
			panic(fmt.Sprintf("catalog %s: enum field %s has no values", c.ElementType, f.Key))
		}
	}
	for _, k := range c.KeyFields {
		if !seen[k] {
			panic(fmt.Sprintf("catalog %s: key field %s is not a field", c.ElementType, k))
		}
	}

	registry[c.ElementType] = c
}

// GetCatalog returns the catalog for an element type.
func GetCatalog(elementType string) (Catalog, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	c, ok := registry[elementType]
	return c, ok
}

// Catalogs returns all registered catalogs sorted by element type.
func Catalogs() []Catalog {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Catalog, 0, len(registry))
	for _, c := range registry {
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ElementType < result[j].ElementType
	})

	return result
}

// CatalogCount returns the number of registered catalogs.
func CatalogCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// unregisterCatalog removes a catalog. Tests only.
func unregisterCatalog(elementType string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, elementType)
}
