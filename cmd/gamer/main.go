/*Command gamer is the entrypoint GAMER-style parameter files and
checkpoint dumps are driven through: "check" validates an input file the
way the simulation's own startup validation would, and "inspect" opens a
checkpoint and reports what it contains, mirroring the teacher's own
mode-switch CLI in guppy.go.
*/
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Aabhash007/gamer/amr/checkpoint"
	"github.com/Aabhash007/gamer/internal/config"
	"github.com/Aabhash007/gamer/internal/errs"
	"github.com/Aabhash007/gamer/internal/runtime"
)

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	mode := os.Args[1]
	args := os.Args[2:]

	switch mode {
	case "help":
		printHelp()
	case "check":
		runCheck(args)
	case "inspect":
		runInspect(args)
	default:
		errs.External(
			"You attempted to run gamer in the mode '%s', but the only valid "+
				"modes are 'help', 'check', and 'inspect'.", mode)
	}
}

func printHelp() {
	fmt.Println(`gamer <mode> [flags]

Modes:
  help      Print this message.
  check     Validate an input parameter file.
  inspect   Print a checkpoint file's header and group names.`)
}

func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	inputFile := fs.String("input", "Input__Parameter", "path to the input parameter file")
	distributed := fs.Bool("distributed", false, "validate as a multi-rank run")
	fs.Parse(args)

	para, err := config.Load(*inputFile)
	if err != nil {
		errs.External("could not load %s: %v", *inputFile, err)
		return
	}

	mode := config.SingleRankMode
	if *distributed {
		mode = config.DistributedMode
	}

	runtime.SetThreads(para.Run.Threads)

	if config.Check(mode, config.CrashOnError, para) {
		fmt.Println("No errors detected.")
	}
}

func runInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		errs.External("inspect mode takes exactly one argument: the checkpoint file to open.")
		return
	}

	rd, err := checkpoint.NewReader(fs.Arg(0))
	if err != nil {
		errs.External("could not open %s: %v", fs.Arg(0), err)
		return
	}

	fmt.Printf("MaxLevel: %d\n", rd.Info.MaxLevel)
	fmt.Printf("NVar:     %d\n", rd.Info.NVar)
	fmt.Printf("Rank:     %d / %d\n", rd.Info.Rank, rd.Info.Ranks)
	fmt.Printf("Step:     %d\n", rd.Info.Step)
	fmt.Printf("Time:     %g\n", rd.Info.Time)
	fmt.Println("Groups:")
	for _, name := range rd.GroupNames() {
		fmt.Printf("  %s\n", name)
	}
}
