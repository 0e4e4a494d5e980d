package main

import "github.com/andresmejia3/facesort/cmd"

func main() {
	cmd.Execute()
}
