// kang compresses .safetensors weight files into chunked .kang archives
// and restores them byte for byte.
//
// Usage:
//
//	kang compress [flags] <input> <output>
//	kang decompress [flags] <input> <output>
//	kang inspect [flags] <archive>
//	kang verify [flags] <archive> <original>
//
// Input may be a single file or a directory. In directory mode every file
// with the matching extension directly inside the input directory is
// converted into the output directory; a failing file does not stop the
// others, but the exit status is 1.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errUsage marks command line mistakes; run prints usage for them.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type command struct {
	name    string
	args    string
	summary string
	codec   bool
	nargs   int
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{
		name: "compress", args: "<input> <output>", nargs: 2, codec: true,
		summary: "compress a .safetensors file or directory",
		run:     runCompress,
	},
	{
		name: "decompress", args: "<input> <output>", nargs: 2, codec: true,
		summary: "restore a .kang archive or directory",
		run:     runDecompress,
	},
	{
		name: "inspect", args: "<archive>", nargs: 1, codec: true,
		summary: "describe an archive without restoring it",
		run:     runInspect,
	},
	{
		name: "verify", args: "<archive> <original>", nargs: 2, codec: true,
		summary: "check that an archive restores to the original file",
		run:     runVerify,
	},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return fmt.Errorf("%w: missing command", errUsage)
	}
	switch args[0] {
	case "--version", "version":
		fmt.Fprintf(stdout, "kang %s\n", version)
		return nil
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	}

	for _, cmd := range commands {
		if cmd.name == args[0] {
			return runCommand(ctx, cmd, args[1:], stdout, stderr)
		}
	}
	printUsage(stderr)
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func runCommand(ctx context.Context, cmd command, args []string, stdout, stderr io.Writer) error {
	flags := newFlags(cmd)
	flagSet := flags.flagSet()
	flagSet.SetOutput(io.Discard)

	if err := flagSet.Parse(args); err != nil {
		printCommandUsage(stderr, cmd, flagSet)
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if flags.help {
		printCommandUsage(stdout, cmd, flagSet)
		return nil
	}
	if flagSet.NArg() != cmd.nargs {
		printCommandUsage(stderr, cmd, flagSet)
		return fmt.Errorf("%w: %s takes %d arguments, got %d", errUsage, cmd.name, cmd.nargs, flagSet.NArg())
	}

	env, err := flags.env(flagSet, stdout, stderr)
	if err != nil {
		return err
	}
	stopProfiles, err := flags.startProfiles()
	if err != nil {
		return err
	}
	defer stopProfiles()

	return cmd.run(ctx, env, flagSet.Args())
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "kang compresses .safetensors files into .kang archives.\n\nUsage:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  kang %-10s %-22s %s\n", cmd.name, cmd.args, cmd.summary)
	}
	fmt.Fprintf(w, "\nRun \"kang <command> --help\" for the flags of a command.\n")
}
