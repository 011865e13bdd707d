package main

import "github.com/cloud-drive-tools/cdt/pkg/cli"

func main() {
	cli.Execute()
}
