// Command orrery indexes a requirements corpus into an entity-relationship
// graph and answers query, impact, and drift questions about it.
package main

import "github.com/papapumpkin/orrery/cmd"

func main() {
	cmd.Execute()
}
