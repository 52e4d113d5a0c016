// Command sitepass runs the construction project access control service.
package main

import (
	"os"

	"github.com/platinummonkey/sitepass/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
