// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/soarmarket/mp/cmd/mp"

func main() {
	cmd.Execute()
}
