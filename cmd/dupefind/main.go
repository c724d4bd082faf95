package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/ivoronin/dupefind/internal/fingerprint"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A process-pool Fingerprinter worker re-invokes this same binary with
	// a hidden subcommand argument (internal/fingerprint.WorkerSubcommandArg).
	// This must be checked before cobra parses argv, since the hidden
	// argument isn't a registered flag or subcommand.
	if len(os.Args) > 1 && os.Args[1] == fingerprint.WorkerSubcommandArg {
		return runFingerprintWorker()
	}

	root := &cobra.Command{
		Use:     "dupefind",
		Short:   "Find duplicate pictures",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newFindCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}

func runFingerprintWorker() int {
	line, err := bufio.NewReader(os.Stdin).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		fmt.Fprintf(os.Stderr, "read worker input: %v\n", err)
		return 1
	}

	output, err := fingerprint.RunWorker(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fingerprint worker: %v\n", err)
		return 1
	}

	os.Stdout.Write(output)
	fmt.Fprintln(os.Stdout)
	return 0
}
