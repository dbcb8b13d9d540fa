/*Package errs contains fatal-path error reporters shared by every command
and by debug-mode invariant checks across the grid core.*/
package errs

import (
	"fmt"
	"log"
	"os"
	"runtime/debug"
)

// External reports an error to stderr and exits. Use it when the problem is
// something a user could reasonably fix by changing a config file, a
// restart path, or a command-line flag.
func External(format string, a ...interface{}) {
	log.Printf("gamer exited early with the following error:\n"+format, a...)
	os.Exit(1)
}

// Internal reports an error along with a stack trace and exits. Use it when
// the problem is a broken invariant that only a code change can fix.
func Internal(format string, a ...interface{}) {
	log.Println("gamer exited early with the following error:")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n\n")
	debug.PrintStack()
	os.Exit(1)
}

// Wrap turns a non-nil error into a formatted error, leaving nil untouched.
func Wrap(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(a, err)...)
}
