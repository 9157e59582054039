package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/croftsec/certpick"
	"github.com/croftsec/certpick/internal/askpass"
	"github.com/croftsec/certpick/internal/config"
	"github.com/croftsec/certpick/internal/logging"
	"github.com/croftsec/certpick/internal/resolver"
	"github.com/croftsec/certpick/internal/store"
)

var (
	resolveConfigPath string
	resolveOverrides  = configValues{}
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve the configured client certificate",
	Long: "Read git-style configuration (the output of `git config --list -z`), " +
		"resolve the client certificate it names, and print the result.",
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveConfigPath, "config", "c", "", "Configuration file (`git config -lz` output); \"-\" for stdin")
	resolveCmd.Flags().Var(resolveOverrides, "set", "Configuration override as key=value (repeatable)")
}

// configValues collects repeated --set key=value flags into the same
// multi-valued shape a git config listing produces.
type configValues map[string][]string

var _ pflag.Value = configValues{}

func (c configValues) String() string {
	var parts []string
	for key, vals := range c {
		for _, v := range vals {
			parts = append(parts, key+"="+v)
		}
	}
	return strings.Join(parts, ",")
}

func (c configValues) Set(s string) error {
	key, value, found := strings.Cut(s, "=")
	if key == "" {
		return fmt.Errorf("invalid override %q, want key=value", s)
	}
	if !found {
		value = ""
	}
	c[key] = append(c[key], value)
	return nil
}

func (c configValues) Type() string { return "key=value" }

// resolveResult is the printable outcome of a resolution.
type resolveResult struct {
	Found         bool     `json:"found" yaml:"found"`
	Subject       string   `json:"subject,omitempty" yaml:"subject,omitempty"`
	Issuer        string   `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	Serial        string   `json:"serial,omitempty" yaml:"serial,omitempty"`
	NotBefore     string   `json:"not_before,omitempty" yaml:"not_before,omitempty"`
	NotAfter      string   `json:"not_after,omitempty" yaml:"not_after,omitempty"`
	HasPrivateKey bool     `json:"has_private_key" yaml:"has_private_key"`
	Chain         []string `json:"chain,omitempty" yaml:"chain,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	logging.Setup(logLevel)

	values, err := loadConfigValues()
	if err != nil {
		return err
	}
	for key, vals := range resolveOverrides {
		values[key] = append(values[key], vals...)
	}

	cfg := config.FromValues(values)

	opts := []resolver.Option{
		resolver.WithPasswordProvider(askpass.New()),
	}
	if storePath != "" {
		path := storePath
		opts = append(opts, resolver.WithStoreOpener(func() (store.Store, error) {
			return store.OpenSQLite(path)
		}))
	}

	r, err := resolver.New(cfg, opts...)
	if err != nil {
		return err
	}

	cred := r.Resolve(cmd.Context())
	result := buildResult(cred)
	return printResult(cmd.OutOrStdout(), result)
}

func loadConfigValues() (map[string][]string, error) {
	if resolveConfigPath == "" {
		return map[string][]string{}, nil
	}

	var reader io.Reader
	if resolveConfigPath == "-" {
		reader = os.Stdin
	} else {
		f, err := os.Open(resolveConfigPath)
		if err != nil {
			return nil, fmt.Errorf("opening config: %w", err)
		}
		defer f.Close()
		reader = f
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// `git config -lz` records are NUL-terminated; plain --list output is not.
	if bytes.ContainsRune(data, 0) {
		return config.ParseGitConfigZ(bytes.NewReader(data))
	}
	return config.ParseGitConfigLines(bytes.NewReader(data))
}

func buildResult(cred *certpick.Credential) resolveResult {
	if cred == nil {
		return resolveResult{}
	}
	result := resolveResult{
		Found:         true,
		Subject:       certpick.FormatDN(cred.Leaf),
		Issuer:        cred.Leaf.Issuer.String(),
		Serial:        cred.Leaf.SerialNumber.String(),
		NotBefore:     cred.Leaf.NotBefore.UTC().Format(time.RFC3339),
		NotAfter:      cred.Leaf.NotAfter.UTC().Format(time.RFC3339),
		HasPrivateKey: cred.HasPrivateKey(),
	}
	for _, cert := range cred.Chain {
		result.Chain = append(result.Chain, cert.Subject.String())
	}
	return result
}

func printResult(w io.Writer, result resolveResult) error {
	switch outputFormat {
	case "json":
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(out))
	case "yaml":
		out, err := yaml.Marshal(result)
		if err != nil {
			return err
		}
		fmt.Fprint(w, string(out))
	case "text":
		if !result.Found {
			fmt.Fprintln(w, "no client certificate resolved")
			return nil
		}
		fmt.Fprintf(w, "Certificate: %s\n", result.Subject)
		fmt.Fprintf(w, "     Issuer: %s\n", result.Issuer)
		fmt.Fprintf(w, "     Serial: %s\n", result.Serial)
		fmt.Fprintf(w, "  Validity: %s to %s\n", result.NotBefore, result.NotAfter)
		fmt.Fprintf(w, "Private Key: %t\n", result.HasPrivateKey)
		for _, subject := range result.Chain {
			fmt.Fprintf(w, "      Chain: %s\n", subject)
		}
	default:
		return errors.New("unknown output format: " + outputFormat)
	}
	return nil
}
