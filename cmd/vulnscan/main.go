// Command vulnscan scans build outputs for known vulnerable Java libraries.
package main

import "os"

func main() {
	os.Exit(Execute(os.Args[1:], os.Stdout, os.Stderr))
}
