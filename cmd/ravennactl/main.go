// Command ravennactl inspects a running ravennad node over its HTTP
// façade.
package main

import "github.com/ravennakit/ravennakit/cmd/ravennactl/cmd"

func main() {
	cmd.Execute()
}
