package sync_test

import (
	"fmt"

	"github.com/courseshelf/shelf/internal/catalog"
	"github.com/courseshelf/shelf/internal/sync"
)

func ExampleClassify() {
	stored := map[string]string{"go101": "1.0", "draft": ""}

	available := []catalog.AvailableCourse{
		{ID: "go101", Version: "1.1"},
		{ID: "draft"},
		{ID: "rust101", Version: "1.0"},
	}
	for i := range available {
		c := &available[i]
		version, exists := stored[c.ID]
		fmt.Println(c.ID, sync.Classify(c, version, exists))
	}
	// Output:
	// go101 changed
	// draft unchanged
	// rust101 new
}
