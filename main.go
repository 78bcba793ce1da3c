package main

import "github.com/NavadeepDj/Missing-Person-Detection-sub000/cmd"

func main() {
	cmd.Execute()
}
