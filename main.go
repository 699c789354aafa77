package main

import (
	"fmt"
	"os"

	"github.com/cppla/yatube/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "yatube:", err)
		os.Exit(1)
	}
}
