// Package main is the single-binary entrypoint for Kudimu.
package main

import "github.com/kudimu-insights/kudimu/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
