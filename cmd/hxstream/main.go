package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "tokenize":
		ok, err := runTokenize(args, os.Stdin, os.Stdout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			os.Exit(2)
		}
	case "tags":
		if err := runTags(args, os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "serve":
		if err := runServe(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("hxstream version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`hxstream - streaming component rendering for Go

Usage:
  hxstream <command> [arguments]

Commands:
  tokenize [file]   Print the token stream of a template (stdin if no file)
  tags [file]       List component tags with their attributes
  serve             Serve file templates from the configured directory
  version           Print version
  help              Show this help

Options for serve:
  -config file      YAML configuration (default hxstream.yaml)
  -data dir         Directory of <store>.yaml files served as stores

Examples:
  hxstream tokenize templates/document.html
  hxstream tags templates/news.html
  HXSTREAM_LOG_LEVEL=debug hxstream serve -config hxstream.yaml -data data`)
}
