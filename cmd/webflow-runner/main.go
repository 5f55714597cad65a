// Command webflow-runner runs declarative web UI flows in a browser.
package main

import "github.com/devicelab-dev/webflow-runner/pkg/cli"

func main() {
	cli.Execute()
}
