package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/deltakit/pkg/patch"
)

var applyPrint bool

func init() {
	cmd := addEditFlags(newApplyCmd())
	cmd.Flags().BoolVar(&applyPrint, "print", false, "Print the parsed operations instead of applying them")
	rootCmd.AddCommand(cmd)
}

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <file> <script>",
		Short: "Apply a patch script to a file",
		Long: `The apply command parses a patch script and applies all of its
operations to the file with a single in-place save. If any operation fails
the file is left unchanged.

Script lines:
  insert   <offset> <data>
  remove   <offset> <length>
  replace  <offset> <data>
  fill     <offset> <length> <byte>
  truncate <size>
  splice   <offset> <path> <source-offset> <length>

Example:
  deltactl apply disk.img fixes.patch --backup
  deltactl apply disk.img fixes.patch --print`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(args)
		},
	}
	return cmd
}

func runApply(args []string) error {
	path, script := args[0], args[1]

	printVerbose("Parsing script: %s\n", script)
	ops, err := patch.ParseScriptFile(script)
	if err != nil {
		return err
	}
	if applyPrint {
		return patch.FormatScript(os.Stdout, ops)
	}
	return runPatch(path, ops)
}
