package main

import "authority/cmd/internal/app"

func main() {
	app.Main()
}
