package main

import (
	"github.com/recolab/reco/pkg/cli"
)

func main() {
	cli.Execute()
}
