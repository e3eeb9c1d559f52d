package main

import "github.com/ValentinKolb/dSuspend/cmd"

func main() {
	cmd.Execute()
}
