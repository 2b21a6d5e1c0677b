// Command docqa runs the reasoning pipeline locally against a directory of
// text documents, without a broker or any backing store.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
