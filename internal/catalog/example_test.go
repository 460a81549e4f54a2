package catalog_test

import (
	"context"
	"fmt"

	"github.com/courseshelf/shelf/internal/catalog"
)

// Courses without an order sort after every ordered course.
func ExampleSortCourses() {
	courses := []catalog.AvailableCourse{
		{ID: "advanced", Order: catalog.IntPtr(2)},
		{ID: "extras"},
		{ID: "intro", Order: catalog.IntPtr(1)},
	}

	catalog.SortCourses(courses)

	for _, c := range courses {
		fmt.Println(c.ID, catalog.OrderOf(c.Order))
	}
	// Output:
	// intro 1
	// advanced 2
	// extras 999
}

// This example reads the catalog from a content directory.
func ExampleFSReader() {
	reader := catalog.NewFSReader("content", nil)

	courses, err := reader.ListAvailableCourses(context.Background())
	if err != nil {
		fmt.Println("catalog unavailable:", err)
		return
	}
	for _, c := range courses {
		fmt.Printf("%s (%s)\n", c.Title, c.Version)
	}
}
