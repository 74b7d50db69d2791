package main

import "github.com/yukia3e/evm-contract-deployer/cmd/deployer/cmd"

func main() {
	cmd.Execute()
}
