package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/croftsec/certpick"
	"github.com/croftsec/certpick/internal/logging"
	"github.com/croftsec/certpick/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the user certificate store",
	Long:  "Print every identity in the user certificate store. Read-only; certpick never adds or removes store entries.",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	logging.Setup(logLevel)

	path := storePath
	if path == "" {
		var err error
		path, err = store.DefaultPath()
		if err != nil {
			return err
		}
	}

	st, err := store.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer st.Close()

	// Empty substring matches every subject.
	identities, err := st.FindBySubject("", false)
	if err != nil {
		return err
	}

	if len(identities) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "store is empty")
		return nil
	}

	for _, id := range identities {
		key := " "
		if id.HasPrivateKey() {
			key = "K"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  (expires %s)\n",
			key,
			certpick.FormatDN(id.Cert),
			id.Cert.NotAfter.UTC().Format(time.DateOnly))
	}
	return nil
}
