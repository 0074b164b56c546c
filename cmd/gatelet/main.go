// Package main provides the gatelet CLI for capability tracking and
// sandboxed plugin execution.
package main

func main() {
	Execute()
}
