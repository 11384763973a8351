package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/adapter/http/handler"
	"github.com/iho/ledgercore/internal/infrastructure/config"
	"github.com/iho/ledgercore/internal/infrastructure/logger"
	"github.com/iho/ledgercore/internal/infrastructure/postgres"
)

func transferCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer operations",
	}

	var req dto.CreateTransferRequest
	var metadata string

	create := &cobra.Command{
		Use:   "create",
		Short: "Move money between two accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.IdempotencyKey == "" {
				req.IdempotencyKey = ulid.Make().String()
				fmt.Fprintf(cmd.ErrOrStderr(), "idempotency key: %s\n", req.IdempotencyKey)
			}
			if metadata != "" {
				if err := json.Unmarshal([]byte(metadata), &req.Metadata); err != nil {
					return fmt.Errorf("invalid --metadata: %w", err)
				}
			}

			var txn dto.TransactionResponse
			status, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/transfers",
				map[string]string{handler.IdempotencyKeyHeader: req.IdempotencyKey}, req, &txn, http.StatusUnprocessableEntity)
			if err != nil {
				return err
			}

			printJSON(cmd.OutOrStdout(), txn)
			if status == http.StatusUnprocessableEntity {
				return fmt.Errorf("transfer %s failed: %s", txn.ID, txn.FailureReason)
			}
			return nil
		},
	}
	create.Flags().StringVar(&req.SenderAccountID, "from", "", "Sender account ID")
	create.Flags().StringVar(&req.ReceiverAccountID, "to", "", "Receiver account ID")
	create.Flags().StringVar(&req.Amount, "amount", "", "Amount, e.g. 125.50")
	create.Flags().StringVar(&req.Currency, "currency", "", "ISO 4217 currency code")
	create.Flags().StringVar(&req.IdempotencyKey, "key", "", "Idempotency key (generated when empty)")
	create.Flags().StringVar(&metadata, "metadata", "", "Metadata as a JSON object")
	_ = create.MarkFlagRequired("from")
	_ = create.MarkFlagRequired("to")
	_ = create.MarkFlagRequired("amount")
	_ = create.MarkFlagRequired("currency")

	var byKey bool
	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a transfer by ID or idempotency key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/transfers/" + args[0]
			if byKey {
				path = "/api/v1/transfers/by-key/" + args[0]
			}

			var txn dto.TransactionResponse
			if _, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, path, nil, nil, &txn); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), txn)
			return nil
		},
	}
	get.Flags().BoolVar(&byKey, "by-key", false, "Treat the argument as an idempotency key")

	cmd.AddCommand(create, get)
	return cmd
}

func accountCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	var req dto.CreateAccountRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Open a zero-balance account",
		RunE: func(cmd *cobra.Command, args []string) error {
			var account dto.AccountResponse
			if _, err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, "/api/v1/accounts", nil, req, &account); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), account)
			return nil
		},
	}
	create.Flags().StringVar(&req.Currency, "currency", "", "ISO 4217 currency code")
	create.Flags().BoolVar(&req.AllowNegativeBalance, "allow-negative", false, "Allow the balance to go below zero")
	_ = create.MarkFlagRequired("currency")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var account dto.AccountResponse
			if _, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/accounts/"+args[0], nil, nil, &account); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), account)
			return nil
		},
	}

	setStatus := &cobra.Command{
		Use:   "set-status <id> <ACTIVE|FROZEN|CLOSED>",
		Short: "Freeze, unfreeze or close an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var account dto.AccountResponse
			body := dto.UpdateAccountStatusRequest{Status: strings.ToUpper(args[1])}
			if _, err := newAPIClient(opts).do(cmd.Context(), http.MethodPatch, "/api/v1/accounts/"+args[0]+"/status", nil, body, &account); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), account)
			return nil
		},
	}

	cmd.AddCommand(create, get, setStatus)
	return cmd
}

func ledgerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}

	consistency := &cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]any
			_, err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/ledger/consistency", nil, nil, &result, http.StatusConflict)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if consistent, _ := result["consistent"].(bool); !consistent {
				fmt.Fprintf(out, "Consistency check FAILED\n%v\n", result["message"])
				return errors.New("ledger is inconsistent")
			}

			fmt.Fprintln(out, "Consistency check PASSED")
			return nil
		},
	}

	cmd.AddCommand(consistency)
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		Long:  "Runs migrations against DATABASE_URL from MIGRATIONS_PATH.",
	}

	run := func(apply func(databaseURL, migrationsPath string, cfg logger.Config) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return apply(cfg.DatabaseURL, cfg.MigrationsPath, logger.Config{
				Level:  cfg.LogLevel,
				Format: "console",
				Output: cmd.ErrOrStderr(),
			})
		}
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: run(func(databaseURL, migrationsPath string, cfg logger.Config) error {
			return postgres.RunMigrations(databaseURL, migrationsPath, logger.New(cfg))
		}),
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: run(func(databaseURL, migrationsPath string, cfg logger.Config) error {
			return postgres.RunMigrationsDown(databaseURL, migrationsPath, logger.New(cfg))
		}),
	}

	cmd.AddCommand(up, down)
	return cmd
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
