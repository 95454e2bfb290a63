package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aigoflow/complaint-classifier/pkg/client"
)

type options struct {
	url     string
	natsURL string
	subject string
	health  string
	timeout time.Duration
	jsonOut bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "classify [queja]",
		Short:         "Classify a customer complaint",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			defer c.Close()

			result, err := c.Classify(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t(prompt=%d completion=%d total=%d)\n",
				result.Category, result.PromptTokens, result.CompletionTokens, result.TotalTokens)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.url, "url", "http://localhost:8080", "Base URL of the classifier service")
	rootCmd.PersistentFlags().StringVar(&opts.natsURL, "nats", "", "NATS server URL; when set the request goes over the work queue")
	rootCmd.PersistentFlags().StringVar(&opts.subject, "subject", client.DefaultSubject, "NATS subject for complaints")
	rootCmd.PersistentFlags().StringVar(&opts.health, "health-topic", client.DefaultHealthTopic, "NATS topic the service answers health requests on")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")
	rootCmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the raw JSON result")

	rootCmd.AddCommand(newHealthCommand(opts))

	return rootCmd
}

func (o *options) newClient() (client.ComplaintClassifier, error) {
	if o.natsURL == "" {
		return client.NewHTTPClient(o.url, &http.Client{Timeout: o.timeout}), nil
	}
	c, err := client.NewNATSClient(o.natsURL, "")
	if err != nil {
		return nil, err
	}
	c.SetTimeout(o.timeout)
	c.SetSubject(o.subject)
	return c, nil
}

func newHealthCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Query the service health topic over NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.natsURL == "" {
				return fmt.Errorf("--nats is required for health")
			}
			c, err := client.NewNATSClient(opts.natsURL, "")
			if err != nil {
				return err
			}
			defer c.Close()
			c.SetHealthTopic(opts.health)

			status, err := c.CheckHealth(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, status)
		},
	}
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
