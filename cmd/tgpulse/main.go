// Package main provides the entry point for the tgpulse activity monitor.
package main

func main() {
	Execute()
}
