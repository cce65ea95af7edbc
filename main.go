package main

import "github.com/ValentinKolb/ddbx/cmd"

func main() {
	cmd.Execute()
}
