// Command edgeqa runs Excel and JSON test suites.
package main

import "github.com/edgeqa/edgeqa-runner/pkg/cli"

func main() {
	cli.Execute()
}
