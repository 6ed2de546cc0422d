package rewind_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/aretw0/rewind"
)

func TestMain(m *testing.M) {
	if rewind.IsChild() {
		os.Exit(rewind.RunChild())
	}
	os.Exit(m.Run())
}

// Example shows a unit being undone: the Worker that applied it is discarded
// and the snapshot taken before it resumes.
func Example() {
	ctx := context.Background()

	sess, err := rewind.Start(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer sess.Shutdown(ctx)

	for _, unit := range []string{"x = 1", "x = x + 1"} {
		if _, err := sess.Submit(ctx, unit); err != nil {
			log.Fatal(err)
		}
	}

	res, _ := sess.Submit(ctx, "x")
	fmt.Print(res.Output)

	// Undo the evaluation and the increment
	_ = sess.Undo(ctx)
	_ = sess.Undo(ctx)

	res, _ = sess.Submit(ctx, "x")
	fmt.Print(res.Output)
	fmt.Println(sess.Depth())

	// Output:
	// 2
	// 1
	// 2
}
