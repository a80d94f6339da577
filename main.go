package main

import "github.com/jmehdipour/marketplace-admin/cmd"

func main() {
	cmd.Execute()
}
