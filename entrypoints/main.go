package main

import (
	"github.com/Laisky/laisky-chart-files/cmd"
)

func main() {
	cmd.Execute()
}
