// Command stagectl inspects, replays and archives staged build projects.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(newApp(os.Stdout)).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "stagectl:", err)
		os.Exit(1)
	}
}
