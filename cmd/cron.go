package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scarlettdetekelala/hermes-agent/internal/agent"
	"github.com/scarlettdetekelala/hermes-agent/internal/cron"
	"github.com/scarlettdetekelala/hermes-agent/internal/delivery"
)

var cronListAll bool

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Inspect and drive the cron scheduler",
}

var cronTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Evaluate every job once and run whatever is due, then exit",
	RunE:  runCronTick,
}

var cronDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the cron scheduler loop until interrupted",
	RunE:  runCronDaemon,
}

var cronListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs",
	RunE:  runCronList,
}

func init() {
	cronListCmd.Flags().BoolVar(&cronListAll, "all", false, "include disabled jobs")
	cronCmd.AddCommand(cronTickCmd, cronDaemonCmd, cronListCmd)
}

func buildCronScheduler() (*cron.CronScheduler, cron.JobStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store := cron.NewFileJobStore(cfg.CronDir() + "/jobs.json")
	invoker := agent.NewInvoker(echoConversation)
	router := delivery.NewRouter(cfg, nil, nil)
	return cron.NewCronScheduler(store, invoker, router, cfg, nil), store, nil
}

func runCronTick(c *cobra.Command, _ []string) error {
	sched, _, err := buildCronScheduler()
	if err != nil {
		return err
	}
	executed, err := sched.Tick(c.Context())
	if err != nil {
		return fmt.Errorf("cron tick: %w", err)
	}
	fmt.Fprintf(c.OutOrStdout(), "ran %d job(s)\n", executed)
	return nil
}

func runCronDaemon(c *cobra.Command, _ []string) error {
	sched, _, err := buildCronScheduler()
	if err != nil {
		return err
	}
	return sched.RunDaemon(c.Context(), cronTickInterval)
}

func runCronList(c *cobra.Command, _ []string) error {
	_, store, err := buildCronScheduler()
	if err != nil {
		return err
	}
	jobs, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading jobs: %w", err)
	}

	w := tabwriter.NewWriter(c.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSCHEDULE\tENABLED\tNEXT RUN\tDELIVER")
	for _, job := range jobs {
		if !cronListAll && !job.Enabled {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%v\n",
			job.ID, job.Name, job.Schedule, job.Enabled,
			job.NextRunAt.Format("2006-01-02 15:04:05"), job.Deliver)
	}
	return w.Flush()
}
