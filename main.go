package main

import (
	"github.com/ariesdevil/aerospike-server/cmd"
)

func main() {
	cmd.Execute()
}
