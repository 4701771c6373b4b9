// Package main provides the livepages command.
//
// Usage:
//
//	livepages serve --api-key KEY --host example.com
//	livepages fetch --api-key KEY --host example.com
//
// See --help for all available options.
package main

func main() {
	Execute()
}
