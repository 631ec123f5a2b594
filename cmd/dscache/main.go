// Command dscache inspects and purges dataset caches and explains the
// effective fetch configuration of a dataset kind.
package main

import (
	"os"
)

func main() {
	if err := newApp().rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
