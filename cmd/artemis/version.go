package main

import (
	"fmt"
	"runtime"

	"github.com/artemis-health/artemis/internal/version"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			v := version.Get()
			suffix := ""
			if version.IsDevelopment(v) {
				suffix = " (development build)"
			}
			fmt.Printf("artemis %s%s %s/%s\n", v, suffix, runtime.GOOS, runtime.GOARCH)
		},
	}
}
