// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/tankerhq/tankerci/cmd/tankerci"

func main() {
	cmd.Execute()
}
