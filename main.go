package main

import (
	"context"
	"fmt"
	"os"

	"github.com/summerlia/zhuhaibay/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31m[ERROR]\033[0m %v\n", err)
		os.Exit(1)
	}
}
