// Package main provides the unified CLI entry point for the garden-hub services.
package main

func main() {
	Execute()
}
