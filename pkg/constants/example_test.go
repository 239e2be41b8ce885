package constants_test

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentstation/stocktake/pkg/constants"
)

// Example demonstrates using constants for common operations
func Example() {
	dir, err := os.MkdirTemp("", "stocktake-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	families := filepath.Join(dir, constants.FamiliesDir)
	if err := os.MkdirAll(families, constants.DirPermissions); err != nil {
		panic(err)
	}

	fmt.Printf("Created dir with %o permissions\n", constants.DirPermissions)
	fmt.Printf("Created file with %o permissions\n", constants.FilePermissions)
	// Output:
	// Created dir with 755 permissions
	// Created file with 644 permissions
}

// Example_artifactNames shows how run artifacts are named for a date.
func Example_artifactNames() {
	date := "2026-06-30"

	fmt.Println(constants.InventoryDirPrefix + date)
	fmt.Printf(constants.RawScanFile+"\n", date)
	fmt.Printf(constants.SortedCountFile+"\n", date)
	fmt.Printf(constants.MovementNote+"\n", date)
	// Output:
	// inventory_2026-06-30
	// raw_inventory_2026-06-30.txt
	// sorted_inventory_2026-06-30.csv
	// manual stock count of 2026-06-30
}
