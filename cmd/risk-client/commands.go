package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/miradorstack/risk-client/internal/models"
	"github.com/miradorstack/risk-client/internal/normalizer"
	"github.com/miradorstack/risk-client/internal/present"
	"github.com/miradorstack/risk-client/internal/services"
)

func modeFor(store bool) models.Mode {
	if store {
		return models.ModePersisted
	}
	return models.ModeEphemeral
}

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score one clinical record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := collectRaw(cmd)
			if err != nil {
				return err
			}
			store, _ := cmd.Flags().GetBool("store")
			asJSON, _ := cmd.Flags().GetBool("json")

			return withApp(cmd, func(a *app) error {
				sub, err := a.service.Predict(cmd.Context(), raw, modeFor(store))
				if err != nil {
					return err
				}
				if asJSON {
					return present.JSON(a.out, sub.Result)
				}
				if err := present.Advisories(a.out, sub.Advisories); err != nil {
					return err
				}
				if err := present.Derived(a.out, sub.Derived); err != nil {
					return err
				}
				return present.Text(a.out, sub.Result)
			})
		},
	}
	cmd.Flags().String("input", "", "YAML or JSON file holding one record")
	cmd.Flags().StringArray("set", nil, "Set a field as name=value (repeatable)")
	cmd.Flags().Bool("store", false, "Store the run under the current identity")
	cmd.Flags().Bool("json", false, "Print the raw result as JSON")
	addFieldFlags(cmd.Flags())
	return cmd
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Score a list of clinical records concurrently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("input")
			if path == "" {
				return errors.New("--input is required")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read input %s: %w", path, err)
			}
			raws, err := parseRecords(data)
			if err != nil {
				return fmt.Errorf("parse input %s: %w", path, err)
			}
			store, _ := cmd.Flags().GetBool("store")
			asJSON, _ := cmd.Flags().GetBool("json")

			return withApp(cmd, func(a *app) error {
				concurrency := a.cfg.Batch.Concurrency
				if cmd.Flags().Changed("concurrency") {
					concurrency, _ = cmd.Flags().GetInt("concurrency")
				}
				items := a.service.PredictBatch(cmd.Context(), raws, modeFor(store), concurrency)
				if err := renderBatch(a, items, asJSON); err != nil {
					return err
				}
				return batchFailures(items)
			})
		},
	}
	cmd.Flags().String("input", "", "YAML or JSON file holding a list of records")
	cmd.Flags().Bool("store", false, "Store each run under the current identity")
	cmd.Flags().Int("concurrency", 0, "Maximum in-flight requests (defaults to config)")
	cmd.Flags().Bool("json", false, "Print results as JSON")
	return cmd
}

type batchOutput struct {
	Result *models.PredictionResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

func renderBatch(a *app, items []services.BatchItem, asJSON bool) error {
	if asJSON {
		out := make([]batchOutput, 0, len(items))
		for _, item := range items {
			if item.Err != nil {
				out = append(out, batchOutput{Error: item.Err.Error()})
				continue
			}
			result := item.Submission.Result
			out = append(out, batchOutput{Result: &result})
		}
		return present.JSON(a.out, out)
	}
	rows := make([]present.BatchRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, present.BatchRow{Result: item.Submission.Result, Err: item.Err})
	}
	return present.Batch(a.out, rows)
}

func batchFailures(items []services.BatchItem) error {
	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d submissions failed", failed, len(items))
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs for the current identity, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			asJSON, _ := cmd.Flags().GetBool("json")

			return withApp(cmd, func(a *app) error {
				runs, err := a.service.History(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}
				if asJSON {
					return present.JSON(a.out, runs)
				}
				return present.History(a.out, runs)
			})
		},
	}
	cmd.Flags().Int("limit", 0, "Page size (defaults to config)")
	cmd.Flags().Int("offset", 0, "Rows to skip")
	cmd.Flags().Bool("json", false, "Print runs as JSON")
	return cmd
}

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse stored runs",
	}
	cmd.AddCommand(runsListCmd())
	cmd.AddCommand(runsGetCmd())
	return cmd
}

func runsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter models.RunFilter
			filter.Disease, _ = cmd.Flags().GetString("disease")
			filter.UserID, _ = cmd.Flags().GetString("user")
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			filter.Offset, _ = cmd.Flags().GetInt("offset")
			asJSON, _ := cmd.Flags().GetBool("json")

			return withApp(cmd, func(a *app) error {
				runs, err := a.service.ListRuns(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					return present.JSON(a.out, runs)
				}
				return present.History(a.out, runs)
			})
		},
	}
	cmd.Flags().String("disease", "", "Only runs for this disease")
	cmd.Flags().String("user", "", "Only runs owned by this user")
	cmd.Flags().Int("limit", 0, "Page size (defaults to config)")
	cmd.Flags().Int("offset", 0, "Rows to skip")
	cmd.Flags().Bool("json", false, "Print runs as JSON")
	return cmd
}

func runsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <run-id>",
		Short: "Show one stored run with its request payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return withApp(cmd, func(a *app) error {
				detail, err := a.service.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return present.JSON(a.out, detail)
				}
				return present.RunDetail(a.out, detail)
			})
		},
	}
	cmd.Flags().Bool("json", false, "Print the run as JSON")
	return cmd
}

func identityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Show or change the identifier attached to stored runs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the current identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				id, err := a.identity.Get(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.out, id)
				return err
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <user-id>",
		Short: "Persist a new identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				if err := a.identity.Set(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(a.out, "identity set to %s\n", args[0])
				return err
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "forget",
		Short: "Remove the stored identifier so the fallback applies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				if err := a.identity.Forget(cmd.Context()); err != nil {
					return err
				}
				_, err := fmt.Fprintln(a.out, "identity cleared")
				return err
			})
		},
	})
	return cmd
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users known to the run store",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <user-id>",
		Short: "Register a user (idempotent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				user, err := a.service.CreateUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return present.Users(a.out, []models.UserRecord{user})
			})
		},
	})

	list := &cobra.Command{
		Use:   "list",
		Short: "List users, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			return withApp(cmd, func(a *app) error {
				users, err := a.service.ListUsers(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}
				return present.Users(a.out, users)
			})
		},
	}
	list.Flags().Int("limit", 0, "Page size (defaults to config)")
	list.Flags().Int("offset", 0, "Rows to skip")
	cmd.AddCommand(list)
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the scoring service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				h, err := a.service.Health(cmd.Context())
				if err != nil {
					return err
				}
				return present.Health(a.out, h)
			})
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models loaded by the scoring service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				list, err := a.service.ListModels(cmd.Context())
				if err != nil {
					return err
				}
				return present.Models(a.out, list)
			})
		},
	}
}

func fieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List the clinical form fields and accepted values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return present.Fields(cmd.OutOrStdout(), normalizer.Fields())
		},
	}
}
