package main

import "github.com/tufnapp/tufngate/cmd/tufn/cli"

func main() {
	cli.Execute()
}
