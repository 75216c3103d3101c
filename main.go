package main

import "github.com/viktsys/stockplot/cmd"

func main() {
	cmd.Execute()
}
