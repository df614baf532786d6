package main

import "github.com/jacobtread/Quizler/cmd"

func main() {
	cmd.Execute()
}
