package main

import (
	"fmt"
	"os"

	"oceanworks.io/datapipe/cmd/datapipe/commands"
)

func main() {

	err := commands.Execute()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
