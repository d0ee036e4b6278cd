package main

import (
	"github.com/dposnet/bft-core/cmd/bft-util/cmd"
)

func main() {
	cmd.Execute()
}
