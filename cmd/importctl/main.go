// Command importctl runs catalog imports from the command line and inspects
// import history. Imports are dry runs unless --apply is given.
package main

import (
	_ "github.com/JonMunkholm/catalog-import/internal/core/catalogs" // Register element catalogs
)

func main() {
	Execute()
}
