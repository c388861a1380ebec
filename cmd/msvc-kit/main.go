package main

import "github.com/loonghao/msvc-kit/src/cmd"

func main() {
	cmd.Execute()
}
