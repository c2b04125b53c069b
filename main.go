package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	"github.com/soter-security/soter/notify"
	"github.com/soter-security/soter/schedule"
	"github.com/soter-security/soter/scan"
)

var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		log.Fatal(err)
	}
}

type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     config
	out     io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out}

	rootCmd := &cobra.Command{
		Use:           "soter",
		Short:         "Check a WordPress site against the WPVulnDB vulnerability database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := loadConfig(c.v, c.cfgFile)
			if err != nil {
				return err
			}
			if cfg.Debug {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			}
			c.cfg = cfg
			return nil
		},
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default ./soter.yaml or /etc/soter/soter.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "debug mode")
	rootCmd.PersistentFlags().String("site-name", "WordPress", "site name used in notifications and the User-Agent")
	rootCmd.PersistentFlags().String("inventory", "", "inventory manifest, a local path or a URL")
	_ = c.v.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = c.v.BindPFlag("site.name", rootCmd.PersistentFlags().Lookup("site-name"))
	_ = c.v.BindPFlag("inventory.manifest", rootCmd.PersistentFlags().Lookup("inventory"))

	rootCmd.AddCommand(c.newScanCmd())
	rootCmd.AddCommand(c.newDaemonCmd())
	rootCmd.AddCommand(c.newCheckCmd())
	rootCmd.AddCommand(newVersionCmd(out))

	return rootCmd
}

func (c *cli) newScanCmd() *cobra.Command {
	var progress, failOnVulnerable bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan and report the findings",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []scan.Option
			if progress {
				opts = append(opts, scan.WithProgress(os.Stderr))
			}
			a, err := newApp(c.cfg, c.out, nil, opts...)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.scanner.Run()
			if err != nil {
				return xerrors.Errorf("scan error: %w", err)
			}

			fmt.Fprintf(c.out, "Checked %d of %d components: %d vulnerabilities found\n",
				result.Scanned, result.Scanned+len(result.Failures), len(result.Findings))
			if failOnVulnerable && result.Vulnerable() {
				return xerrors.Errorf("%d vulnerabilities detected", len(result.Findings))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false, "show a progress bar")
	cmd.Flags().BoolVar(&failOnVulnerable, "fail-on-vulnerable", false, "exit with an error when a vulnerability is found")
	return cmd
}

func (c *cli) newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Scan on a schedule and serve Prometheus metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			a, err := newApp(c.cfg, c.out, reg)
			if err != nil {
				return err
			}
			defer a.close()

			srv := &http.Server{
				Addr:              c.cfg.Metrics.Addr,
				Handler:           newMux(a.scanner, reg),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				log.Printf("Serving metrics on %s", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("Metrics server error: %s", err)
				}
			}()

			s := schedule.NewScheduler(c.cfg.Schedule.Interval, func() error {
				_, err := a.scanner.Run()
				return err
			}, schedule.WithStateDir(c.cfg.Schedule.StateDir))
			s.Start(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().Duration("interval", schedule.DefaultInterval, "time between scans")
	cmd.Flags().String("metrics-addr", ":9090", "address of the metrics endpoint")
	_ = c.v.BindPFlag("schedule.interval", cmd.Flags().Lookup("interval"))
	_ = c.v.BindPFlag("metrics.addr", cmd.Flags().Lookup("metrics-addr"))
	return cmd
}

// newMux serves /metrics, /healthz and POST /scan, which starts a scan in the
// background unless one is already running.
func newMux(scanner *scan.Scanner, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, scanner.State())
	})
	mux.HandleFunc("/scan", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if scanner.State() == scan.Running {
			http.Error(w, scan.ErrAlreadyRunning.Error(), http.StatusConflict)
			return
		}
		go func() {
			if _, err := scanner.Run(); err != nil {
				log.Printf("Scan error: %s", err)
			}
		}()
		w.WriteHeader(http.StatusAccepted)
	})
	return mux
}

func (c *cli) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Print the inventory and the outcome of the last scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := newInventory(c.cfg).Load()
			if err != nil {
				return xerrors.Errorf("inventory error: %w", err)
			}
			components := inv.Components()
			fmt.Fprintf(c.out, "%d components:\n", len(components))
			for _, comp := range components {
				fmt.Fprintf(c.out, "  %s\n", comp)
			}

			if c.cfg.Notify.ReportDir == "" {
				return nil
			}
			last, err := notify.NewReport(c.cfg.Notify.ReportDir, c.cfg.Site.Name).Latest()
			if err != nil {
				fmt.Fprintln(c.out, "No scan report yet")
				return nil
			}
			fmt.Fprintf(c.out, "Last scan %s at %s: %d vulnerabilities, %d failures\n",
				last.State, last.FinishedAt.Format(time.RFC3339), len(last.Findings), len(last.Failures))
			return nil
		},
	}
}

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "soter %s\n", version)
		},
	}
}
