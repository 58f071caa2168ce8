package main

import (
	"github.com/ajdavis/mongo-space-time/cmd"
)

func main() {
	cmd.Execute()
}
