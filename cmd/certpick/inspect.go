package main

import (
	"encoding/pem"
	"fmt"
	"os"

	ctx509 "github.com/google/certificate-transparency-go/x509"
	"github.com/google/certificate-transparency-go/x509util"
	"github.com/spf13/cobra"

	"github.com/croftsec/certpick"
	"github.com/croftsec/certpick/internal/logging"
)

var inspectPassword string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print certificate details from a file",
	Long:  "Decode a certificate file (PEM, DER, PKCS#12, or PKCS#7) and print an openssl-style dump of each certificate.",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectPassword, "password", "p", "", "Password for PKCS#12 input")
}

func runInspect(cmd *cobra.Command, args []string) error {
	logging.Setup(logLevel)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	for _, raw := range certificateDERs(data) {
		cert, err := ctx509.ParseCertificate(raw)
		if err != nil {
			return fmt.Errorf("parsing certificate: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), x509util.CertificateToString(cert))
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

// certificateDERs extracts the raw DER of every certificate in the input,
// reusing the resolver's own file-format handling.
func certificateDERs(data []byte) [][]byte {
	if certpick.IsPEM(data) {
		var ders [][]byte
		rest := data
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			if block.Type == "CERTIFICATE" {
				ders = append(ders, block.Bytes)
			}
		}
		return ders
	}

	cred, err := certpick.ParseCredential(data, nil, inspectPassword)
	if err != nil {
		return nil
	}
	ders := [][]byte{cred.Leaf.Raw}
	for _, cert := range cred.Chain {
		ders = append(ders, cert.Raw)
	}
	return ders
}
