package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// mustFlag panics on a flag lookup error. Flags are registered in init(),
// so a failed lookup is a programming bug, not a runtime condition.
func mustFlag[T any](val T, err error, name string) T {
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	return mustFlag(val, err, name)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	return mustFlag(val, err, name)
}

func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	return mustFlag(val, err, name)
}
