package main

import (
	"fmt"
	"os"

	"github.com/shilin66/report-merger/internal/cmd"
)

func main() {
	args, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误: %v\n", err)
		os.Exit(2)
	}

	if err := cmd.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
