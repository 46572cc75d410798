package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	corepersistence "github.com/staffbridge/staffbridge/modules/core/infrastructure/persistence"
	"github.com/staffbridge/staffbridge/modules/hrimport/domain/importjob"
	importpersistence "github.com/staffbridge/staffbridge/modules/hrimport/infrastructure/persistence"
	"github.com/staffbridge/staffbridge/modules/hrimport/presentation/controllers/dtos"
	importservices "github.com/staffbridge/staffbridge/modules/hrimport/services"
	hrmpersistence "github.com/staffbridge/staffbridge/modules/hrm/infrastructure/persistence"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/configuration"
	"github.com/staffbridge/staffbridge/pkg/eventbus"
)

// importctl is the operator companion to the server: it talks to the
// same database directly, so a stuck job can be inspected or pushed
// forward even when the HTTP surface is unavailable.

var tenantFlag string

func main() {
	root := &cobra.Command{
		Use:           "importctl",
		Short:         "Inspect and operate HR import jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&tenantFlag, "tenant", "", "tenant uuid (required for tenant-scoped commands)")

	root.AddCommand(listCmd(), statusCmd(), processCmd(), sweepCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func connect(ctx context.Context) (*pgxpool.Pool, error) {
	conf := configuration.Use()
	poolCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return pgxpool.New(poolCtx, conf.Database.Opts)
}

// tenantContext builds the pool-backed, tenant-scoped context every
// repository call expects.
func tenantContext(ctx context.Context, pool *pgxpool.Pool) (context.Context, error) {
	if tenantFlag == "" {
		return nil, fmt.Errorf("--tenant is required")
	}
	tenantID, err := uuid.Parse(tenantFlag)
	if err != nil {
		return nil, fmt.Errorf("--tenant must be a uuid: %w", err)
	}
	return composables.WithTenantID(composables.WithPool(ctx, pool), tenantID), nil
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(encoded))
	return nil
}

func listCmd() *cobra.Command {
	var (
		limit      int
		offset     int
		statusName string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent import jobs for a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			ctx, err := tenantContext(cmd.Context(), pool)
			if err != nil {
				return err
			}

			params := &importjob.FindParams{Limit: limit, Offset: offset}
			if statusName != "" {
				status, err := importjob.NewStatus(statusName)
				if err != nil {
					return err
				}
				params.Status = status
			}

			jobs, err := importpersistence.NewImportJobRepository().GetPaginated(ctx, params)
			if err != nil {
				return err
			}
			summaries := make([]*dtos.ImportJobSummaryResponse, 0, len(jobs))
			for _, job := range jobs {
				summaries = append(summaries, dtos.ToImportJobSummaryResponse(job))
			}
			return printJSON(summaries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum jobs to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "jobs to skip")
	cmd.Flags().StringVar(&statusName, "status", "", "filter by status (pending|processing|completed|failed)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show one import job with its row errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("job id must be a uuid: %w", err)
			}
			pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			ctx, err := tenantContext(cmd.Context(), pool)
			if err != nil {
				return err
			}

			job, err := importpersistence.NewImportJobRepository().GetByID(ctx, jobID)
			if err != nil {
				return err
			}
			return printJSON(dtos.ToImportJobResponse(job))
		},
	}
}

// processCmd claims a pending job and runs its batch in the foreground.
// Useful when the server's workers are down or a job needs a supervised
// rerun after a requeue.
func processCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "process <job-id>",
		Short: "Claim a pending job and run its batch inline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("job id must be a uuid: %w", err)
			}
			pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			ctx, err := tenantContext(cmd.Context(), pool)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			conf := configuration.Use()
			service := importservices.NewImportService(
				importpersistence.NewImportJobRepository(),
				corepersistence.NewUserRepository(),
				hrmpersistence.NewProfileRepository(),
				corepersistence.NewDepartmentRepository(),
				eventbus.NewEventPublisher(conf.Logger()),
				importservices.NewPipelineMetrics(prometheus.NewRegistry()),
				nil, // no worker queue: processing happens inline
				importservices.ImportServiceOptions{
					ProgressEvery: conf.Import.ProgressEvery,
					MaxRows:       conf.Import.MaxRows,
				},
			)

			if err := service.Trigger(ctx, jobID); err != nil {
				return err
			}
			if err := service.Process(ctx, jobID); err != nil {
				return err
			}
			job, err := service.GetByID(ctx, jobID)
			if err != nil {
				return err
			}
			return printJSON(dtos.ToImportJobResponse(job))
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "abort processing after this long")
	return cmd
}

// sweepCmd runs one reclaim pass across all tenants: stuck pending jobs
// are listed and stale processing jobs are moved back to pending. The
// server's scheduler (or a follow-up `process`) picks them up.
func sweepCmd() *cobra.Command {
	var (
		pendingThreshold time.Duration
		heartbeatTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Requeue jobs with expired heartbeats and report stuck pending jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			ctx := composables.WithPool(cmd.Context(), pool)

			jobs := importpersistence.NewImportJobRepository()
			stuck, err := jobs.FindStuckPending(ctx, pendingThreshold)
			if err != nil {
				return err
			}
			requeued, err := jobs.RequeueStale(ctx, heartbeatTimeout)
			if err != nil {
				return err
			}

			for _, ref := range stuck {
				fmt.Fprintf(os.Stdout, "stuck pending\t%s\ttenant=%s\n", ref.ID, ref.TenantID)
			}
			for _, ref := range requeued {
				fmt.Fprintf(os.Stdout, "requeued\t%s\ttenant=%s\n", ref.ID, ref.TenantID)
			}
			fmt.Fprintf(os.Stdout, "%d stuck pending, %d requeued\n", len(stuck), len(requeued))
			return nil
		},
	}
	cmd.Flags().DurationVar(&pendingThreshold, "pending-threshold", time.Minute, "report pending jobs older than this")
	cmd.Flags().DurationVar(&heartbeatTimeout, "heartbeat-timeout", 5*time.Minute, "requeue processing jobs whose heartbeat is older than this")
	return cmd
}
