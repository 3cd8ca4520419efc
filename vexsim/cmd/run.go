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
	"github.com/sirupsen/logrus"

	"vexos.dev/vexos/pkg/log"
	"vexos.dev/vexos/vexsim/sim"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	debug bool
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "run a TOML task/signal scenario and print the final task table"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] <scenario.toml> - run a scenario
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.debug, "debug", false, "enable signal delivery traces")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	if r.debug {
		l := logrus.New()
		l.SetLevel(logrus.DebugLevel)
		log.SetTarget(log.LogrusTarget(l))
	}

	cfg, err := sim.Load(f.Arg(0))
	if err != nil {
		Fatalf("loading scenario: %v", err)
	}
	res, err := sim.Run(cfg)
	if err != nil {
		Fatalf("running scenario: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "TID\tNAME\tSTATE\tSTOPPED\tPENDING\tWSTATUS")
	for _, ts := range res.Tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%#x\t%#x\n",
			ts.TID, ts.Name, ts.State, ts.Stopped, ts.Pending, ts.WaitStatus)
	}
	w.Flush()

	if len(res.Delivered) > 0 {
		fmt.Println()
		fmt.Println("deliveries:")
		for _, d := range res.Delivered {
			fmt.Println("  " + d)
		}
	}
	return subcommands.ExitSuccess
}
