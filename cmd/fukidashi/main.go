package main

import (
	"github.com/fukidashi-ocr/fukidashi/cmd/fukidashi/cmd"
)

func main() {
	cmd.Execute()
}
