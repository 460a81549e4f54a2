package daemon_test

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/courseshelf/shelf/internal/daemon"
)

// ExampleFileWatcher shows a chapter edit surfacing as an event for its
// course.
func ExampleFileWatcher() {
	root, err := os.MkdirTemp("", "watcher-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(root)

	chapters := filepath.Join(root, "go101", "chapters")
	if err := os.MkdirAll(chapters, 0755); err != nil {
		log.Fatal(err)
	}

	fw, err := daemon.NewFileWatcher()
	if err != nil {
		log.Fatal(err)
	}
	defer fw.Stop()

	if err := fw.Start(root); err != nil {
		log.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(chapters, "01-intro.md"), []byte("# Intro\n"), 0644); err != nil {
		log.Fatal(err)
	}

	select {
	case event := <-fw.Events():
		fmt.Printf("%s: %s in %s\n", event.Op, filepath.Base(event.Path), event.Course)
	case <-time.After(2 * time.Second):
		fmt.Println("no event")
	}

	// Output:
	// create: 01-intro.md in go101
}
