package main

import (
	"github.com/abe-nagisa/singlezip/cmd"
)

func main() {
	cmd.Execute()
}
