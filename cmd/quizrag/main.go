package main

import "quizrag/internal/cli"

func main() {
	cli.Execute()
}
