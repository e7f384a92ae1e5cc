package main

import (
	"fmt"
	"log/slog"
	"os"
)

var version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return 0
	}

	sub := args[0]
	switch sub {
	case "chat":
		if err := cmdChat(args[1:]); err != nil {
			slog.Error("chat failed", "err", err)
			return 1
		}
		return 0
	case "say":
		if err := cmdSay(args[1:]); err != nil {
			slog.Error("say failed", "err", err)
			return 1
		}
		return 0
	case "convert":
		if err := cmdConvert(args[1:]); err != nil {
			slog.Error("convert failed", "err", err)
			return 1
		}
		return 0
	case "fetch":
		if err := cmdFetch(args[1:]); err != nil {
			slog.Error("fetch failed", "err", err)
			return 1
		}
		return 0
	case "models":
		if err := cmdModels(args[1:]); err != nil {
			slog.Error("models failed", "err", err)
			return 1
		}
		return 0
	case "version":
		fmt.Println(version)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n\n", sub)
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `barevox %s

Usage:
  barevox <subcommand> [flags]

Subcommands:
  chat     Interactive chat with a local GGUF model (or a llama-server)
  say      Synthesize speech in a cloned voice from a reference clip
  convert  Convert a GGUF checkpoint to safetensors
  fetch    Download checkpoints from the hub or an S3 mirror
  models   List GGUF models in the models directory
  version  Print version

Run "barevox <subcommand> -h" for flags.
`, version)
}
