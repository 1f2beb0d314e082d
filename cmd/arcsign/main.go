package main

import "github.com/vietddude/arcsign/internal/cli"

func main() {
	cli.Execute()
}
