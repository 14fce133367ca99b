package main

import (
	"github.com/Paintersrp/execo/internal/cli"
	"github.com/Paintersrp/execo/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
