// Copyright 2024 The VexOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"vexos.dev/vexos/pkg/abi/vex"
	"vexos.dev/vexos/pkg/kernel"
)

// Sigtable implements subcommands.Command for the "sigtable" command.
type Sigtable struct{}

// Name implements subcommands.Command.Name.
func (*Sigtable) Name() string {
	return "sigtable"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Sigtable) Synopsis() string {
	return "print the default action taken for each standard signal"
}

// Usage implements subcommands.Command.Usage.
func (*Sigtable) Usage() string {
	return `sigtable - print default signal actions
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Sigtable) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Sigtable) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NUM\tSIGNAL\tDEFAULT")
	for sig := vex.Signal(vex.FirstStdSignal); sig <= vex.LastStdSignal; sig++ {
		fmt.Fprintf(w, "%d\t%v\t%s\n", int(sig), sig, kernel.DefaultActionName(sig))
	}
	w.Flush()
	return subcommands.ExitSuccess
}
