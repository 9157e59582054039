package main

import (
	"github.com/spf13/cobra"
)

var (
	logLevel     string
	storePath    string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "certpick",
	Short: "Client certificate resolution tool",
	Long:  "Resolve which client certificate an HTTPS transport should present, from a certificate file or the user certificate store.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&storePath, "store", "s", "", "Certificate store path (default: user config dir)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text, json, yaml")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(listCmd)
}
