// Command numdesens masks sensitive numeric values in technical documents
// and restores them from the mapping it writes alongside.
//
// Usage:
//
//	# One file: writes report_desensitized.md and report_desensitized_map.json
//	numdesens desensitize report.md
//
//	# Every .md/.txt/.csv/... file at the top level of a directory
//	numdesens desensitize docs/ -o masked/
//
//	# Put the numbers back
//	numdesens restore report_desensitized.md -m report_desensitized_map.json
//
//	# HTTP API
//	API_PORT=8090 STORE_PATH=mappings.db numdesens serve
package main

import (
	"os"

	"numeric-desensitizer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
