package errors_test

import (
	"fmt"

	"github.com/agentstation/stocktake/pkg/errors"
)

// Example demonstrates basic error creation and checking.
func Example() {
	err := &errors.NotFoundError{
		Resource: "item",
		ID:       "A-100",
	}

	if errors.IsNotFound(err) {
		fmt.Println("Resource not found")
	}

	// Output: Resource not found
}

// Example_codeOf shows how the operator-facing code is recovered from a wrapped error.
func Example_codeOf() {
	err := fmt.Errorf("reconcile: %w", &errors.UnknownItemError{Item: "C", Line: 4})

	if code, ok := errors.CodeOf(err); ok {
		fmt.Printf("%s %s\n", code, code.Title())
	}

	// Output: A001 unknown item
}

// Example_aborted shows the committed flag of an operator abort.
func Example_aborted() {
	err := errors.NewAbortedError("replace", "operator cancelled", true, nil)
	if errors.IsAborted(err) {
		fmt.Println(err)
	}

	// Output: run aborted during replace: operator cancelled (ledger changes were already committed and are not rolled back)
}
