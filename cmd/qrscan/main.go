package main

import "github.com/inchinet/qrscanner/cmd/qrscan/cmd"

func main() {
	cmd.Execute()
}
