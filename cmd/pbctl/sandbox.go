package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"paybridge/internal/provider"
	"paybridge/internal/provider/sandbox"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func sandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Inspect the deterministic sandbox rail",
	}
	cmd.AddCommand(simulateCmd())
	cmd.AddCommand(webhookCmd())
	return cmd
}

// sandboxRequest reads the flags shared by the sandbox subcommands.
func sandboxRequest(cmd *cobra.Command) (provider.PaymentRequest, error) {
	ref, _ := cmd.Flags().GetString("reference")
	op, _ := cmd.Flags().GetString("operator")
	method, _ := cmd.Flags().GetString("method")
	amt, _ := cmd.Flags().GetString("amount")
	cur, _ := cmd.Flags().GetString("currency")

	amount, err := decimal.NewFromString(amt)
	if err != nil {
		return provider.PaymentRequest{}, fmt.Errorf("amount: %w", err)
	}
	return provider.PaymentRequest{
		Reference: ref,
		Operator:  op,
		Method:    provider.Method(strings.ToUpper(method)),
		Amount:    amount,
		Currency:  cur,
	}, nil
}

func sandboxFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("reference", "r", "", "Payment reference")
	cmd.Flags().StringP("amount", "a", "", "Amount in major units")
	cmd.Flags().String("operator", "", "Mobile money operator (defaults to the method)")
	cmd.Flags().StringP("method", "m", string(provider.MethodCard), "Payment method")
	cmd.Flags().StringP("currency", "c", "USD", "Currency")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("amount")
}

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Show the bucket and scenario a request hashes to",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := sandboxRequest(cmd)
			if err != nil {
				return err
			}
			op := req.Operator
			if op == "" {
				op = string(req.Method)
			}
			o := sandbox.Simulate(req.Reference, op, req.Amount, 0)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"seed":               o.Seed,
				"bucket":             o.Bucket,
				"scenario":           o.Scenario,
				"provider_reference": o.ProviderReference,
			})
		},
	}
	sandboxFlags(cmd)
	return cmd
}

func webhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Print, or deliver, the callback the sandbox would send",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := sandboxRequest(cmd)
			if err != nil {
				return err
			}
			body := sandbox.SimulateWebhook(req)
			target, _ := cmd.Flags().GetString("post")
			if target == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			return post(cmd, strings.TrimRight(target, "/")+"/webhooks/sandbox", http.Header{}, body)
		},
	}
	sandboxFlags(cmd)
	cmd.Flags().String("post", "", "PayBridge base URL to deliver the callback to")
	return cmd
}
