// Command radiobot plays music on the local audio device and lets a live
// chat request and skip songs.
package main

import (
	"os"
	"runtime/debug"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
)

func main() {
	boa.CmdT[Params]{
		Use:     "radiobot",
		Short:   "Chat-controlled radio",
		Long:    "radiobot keeps a playlist playing on the local audio device and serves !song, !skip and !sr requests from chat.",
		Version: appVersion(),
		ParamEnrich: boa.ParamEnricherCombine(
			boa.ParamEnricherName,
			boa.ParamEnricherShort,
		),
		RunFunc: func(params *Params, cmd *cobra.Command, args []string) {
			if err := run(cmd.Context(), params); err != nil {
				cmd.PrintErrln("radiobot:", err)
				os.Exit(1)
			}
		},
	}.Run()
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown-(no build info)"
	}
	if bi.Main.Version == "" {
		return "unknown-(no version)"
	}
	return bi.Main.Version
}
