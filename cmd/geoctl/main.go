// Package main provides geoctl, the geostore command-line client.
package main

import "github.com/stuartshay/geostore/internal/cli"

func main() {
	cli.Execute()
}
