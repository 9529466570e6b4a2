// bop — Battery optimizer for Linux laptops.
// Author: vesaa | License: MIT | https://github.com/vesaa/bop
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/vesaa/bop/internal/apply"
	"github.com/vesaa/bop/internal/audit"
	"github.com/vesaa/bop/internal/auto"
	"github.com/vesaa/bop/internal/brightness"
	"github.com/vesaa/bop/internal/config"
	"github.com/vesaa/bop/internal/errs"
	"github.com/vesaa/bop/internal/hardware"
	"github.com/vesaa/bop/internal/history"
	"github.com/vesaa/bop/internal/journal"
	"github.com/vesaa/bop/internal/models"
	"github.com/vesaa/bop/internal/output"
	"github.com/vesaa/bop/internal/plan"
	"github.com/vesaa/bop/internal/profile"
	"github.com/vesaa/bop/internal/revert"
	"github.com/vesaa/bop/internal/snapshot"
	"github.com/vesaa/bop/internal/status"
	"github.com/vesaa/bop/internal/sysfs"
	"github.com/vesaa/bop/internal/system"
	"github.com/vesaa/bop/internal/wakeup"
)

const version = "v0.1.0"

// app is the per-invocation wiring shared by every subcommand.
type app struct {
	cfg     *config.Config
	root    sysfs.Root
	runner  system.Runner
	out     *output.Printer
	history history.Recorder
}

func (a *app) store() journal.Store {
	return journal.Store{Path: a.root.Path(a.cfg.StateFile)}
}

func (a *app) services() system.Systemctl { return system.Systemctl{R: a.runner} }

func (a *app) mode() plan.Mode {
	if a.cfg.Aggressive {
		return plan.Aggressive
	}
	return plan.Normal
}

func (a *app) rule() auto.Rule {
	return auto.Rule{Root: a.root, Path: a.cfg.UdevRule, Runner: a.runner}
}

// detect reads the hardware view and picks its profile.
func (a *app) detect() (*hardware.View, *profile.Profile, error) {
	hw, err := hardware.Detect(a.root)
	if err != nil {
		return nil, nil, err
	}
	prof, err := profile.Detect(hw)
	if err != nil {
		return nil, nil, err
	}
	return hw, prof, nil
}

func requireRoot(op string) error {
	if unix.Geteuid() != 0 {
		return errs.RequireRoot(op)
	}
	return nil
}

func main() {
	var (
		a          = &app{runner: system.Exec{}}
		configFile string
		format     string
	)

	root := &cobra.Command{
		Use:   "bop",
		Short: "bop — battery optimizer for Linux laptops",
		Long: `bop audits power settings on Linux laptops, applies the fixes it finds
with a journal of every change, and reverts them exactly.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, cmd.Root().PersistentFlags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			f, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.root = sysfs.New(cfg.Root)
			a.out = output.New(os.Stdout, f)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.history.Close()
		},
	}
	pf := root.PersistentFlags()
	pf.String("root", "/", "Filesystem root to operate on (for fixtures and chroots)")
	pf.StringVar(&configFile, "config", "", "Config file (default: search /etc/bop, ~/.config/bop, .)")
	pf.StringVar(&format, "format", "text", "Output format: text, json or yaml")
	pf.Bool("aggressive", false, "Use aggressive power settings")

	// openHistory is deferred until a command actually records something.
	openHistory := func() {
		a.history = history.OpenRecorder(a.root.Path(a.cfg.HistoryDB), a.cfg.HistoryEnabled)
	}

	// ── audit ────────────────────────────────────────────────────────────────
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Report power findings and a score for this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			hw, prof, err := a.detect()
			if err != nil {
				return err
			}
			reg := prof.Registry(audit.Options{
				Aggressive: a.cfg.Aggressive,
				Services:   a.services(),
				Runner:     a.runner,
			})
			findings := reg.Run(hw, a.root)
			report := output.AuditReport{
				Profile:  prof.Name,
				Hardware: hw,
				Score:    audit.Score(findings),
				Findings: findings,
			}
			var host hardware.HostSummary
			if a.root.IsSystem() {
				host = hardware.Host()
				report.Host = &host
			}
			openHistory()
			a.history.Audit(prof.Name, findings, host)
			return a.out.Audit(report)
		},
	}

	// ── apply ────────────────────────────────────────────────────────────────
	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply the planned optimizations and journal every change",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			yes, _ := cmd.Flags().GetBool("yes")

			hw, _, err := a.detect()
			if err != nil {
				return err
			}
			store := a.store()
			prior, err := store.Load()
			if err != nil {
				return err
			}
			p := plan.Builder{Root: a.root, Services: a.services(), Mode: a.mode()}.Build(hw)
			if a.out.Structured() && dryRun {
				return a.out.Plan(p)
			}
			if p.Empty() {
				return a.out.Plan(p)
			}
			if !dryRun && !yes {
				if err := a.out.Plan(p); err != nil {
					return err
				}
				ok, err := confirm(fmt.Sprintf("Apply %d changes?", len(p.SysfsWrites)+len(p.KernelParams)+
					len(p.ServicesToDisable)+len(p.ACPIWakeupDisable)+len(p.ModprobeConfigs)))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("  → Aborted, nothing changed.")
					return nil
				}
			}

			e := &apply.Engine{
				Root:     a.root,
				Services: a.services(),
				Prior:    prior,
				DryRun:   dryRun,
				Out:      os.Stdout,
				Ops: &apply.SystemOps{
					Root:        a.root,
					Runner:      a.runner,
					Wakeup:      wakeup.New(a.root),
					Store:       store,
					UnitDir:     a.cfg.UnitDir,
					ModprobeDir: a.cfg.ModprobeDir,
				},
			}
			j, err := e.Run(hw, p)
			if dryRun {
				return err
			}
			openHistory()
			if err != nil {
				if j != nil {
					a.history.Event(models.EventApply, "partial", err.Error(), j.Entries())
				}
				return err
			}
			a.history.Event(models.EventApply, "applied", fmt.Sprintf("%s mode", a.mode()), j.Entries())
			return a.out.Journal(j)
		},
	}
	applyCmd.Flags().Bool("dry-run", false, "Show what would change without touching the system")
	applyCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	// ── revert ───────────────────────────────────────────────────────────────
	revertCmd := &cobra.Command{
		Use:   "revert",
		Short: "Undo every change recorded in the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot("revert"); err != nil {
				return err
			}
			store := a.store()
			j, err := store.Load()
			if err != nil {
				return err
			}
			if j == nil {
				fmt.Println("  → Nothing to revert.")
				return nil
			}
			e := &revert.Engine{
				Out: os.Stdout,
				Ops: &revert.SystemOps{Root: a.root, Runner: a.runner, Wakeup: wakeup.New(a.root), Store: store},
			}
			res, err := e.Run(j)
			openHistory()
			a.out.Reverted(res, a.cfg.StateFile)
			if err != nil {
				a.history.Event(models.EventRevert, "incomplete", err.Error(), res.Undone)
				return err
			}
			a.history.Event(models.EventRevert, "reverted", "", res.Undone)
			return nil
		},
	}

	// ── status ───────────────────────────────────────────────────────────────
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show which applied changes are still in effect",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.store().Load()
			if err != nil {
				return err
			}
			if j == nil {
				return a.out.NotApplied()
			}
			return a.out.Status(status.Checker{Root: a.root, Services: a.services()}.Check(j))
		},
	}

	root.AddCommand(auditCmd, applyCmd, revertCmd, statusCmd,
		wakeCommand(a), autoCommand(a, openHistory), snapshotCommand(a), historyCommand(a, openHistory))

	// ── version ──────────────────────────────────────────────────────────────
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print bop version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bop %s  |  Author: vesaa\n", version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// confirm asks on the terminal. Without one, apply needs --yes.
func confirm(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("stdin is not a terminal; pass --yes to apply without confirmation")
	}
	fmt.Printf("%s [y/N] ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func wakeCommand(a *app) *cobra.Command {
	manager := func() *wakeup.Manager { return wakeup.New(a.root) }
	cmd := &cobra.Command{
		Use:   "wake",
		Short: "Inspect and control ACPI wake sources",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List USB controller wake sources and attached devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := manager().Controllers()
			if err != nil {
				return err
			}
			return a.out.Controllers(cs)
		},
	}
	scan := &cobra.Command{
		Use:   "scan",
		Short: "Enable wake on controllers with devices, disable it on empty ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			m := manager()
			actions, err := m.Scan()
			if err != nil {
				return err
			}
			if !dryRun && len(actions) > 0 {
				if err := requireRoot("wake scan"); err != nil {
					return err
				}
				if err := m.Apply(actions); err != nil {
					return err
				}
			}
			return a.out.Actions(actions, dryRun)
		},
	}
	scan.Flags().Bool("dry-run", false, "Only print the decisions")

	toggle := func(use, short string, enable bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " NAME",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := requireRoot("wake " + use); err != nil {
					return err
				}
				m := manager()
				set := m.Disable
				if enable {
					set = m.Enable
				}
				if err := set(args[0]); err != nil {
					return err
				}
				fmt.Printf("  ✓ %s %sd\n", args[0], use)
				return nil
			},
		}
	}
	cmd.AddCommand(list, scan,
		toggle("enable", "Enable wake on a source", true),
		toggle("disable", "Disable wake on a source", false))
	return cmd
}

func autoCommand(a *app, openHistory func()) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Apply on battery, revert on AC (run by the udev rule)",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := auto.ParseInhibitorMode(a.cfg.InhibitorMode)
			if err != nil {
				return err
			}
			s := &auto.Switcher{
				Root:          a.root,
				Runner:        a.runner,
				Store:         a.store(),
				LockPath:      a.cfg.LockFile,
				UnitDir:       a.cfg.UnitDir,
				ModprobeDir:   a.cfg.ModprobeDir,
				Aggressive:    a.cfg.Aggressive,
				InhibitorMode: mode,
				Brightness:    brightness.Settings{AutoDim: a.cfg.Brightness.AutoDim, DimPercent: a.cfg.Brightness.DimPercent},
				Notify:        a.cfg.Notify,
				Out:           os.Stdout,
			}
			outcome, err := s.Run()
			if outcome == auto.Applied || outcome == auto.Reverted {
				openHistory()
				detail := ""
				if err != nil {
					detail = err.Error()
				}
				a.history.Event(models.EventAuto, string(outcome), detail, 0)
			}
			return err
		},
	}
	enable := &cobra.Command{
		Use:   "enable",
		Short: "Install the udev rule that runs `bop auto` on AC plug events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot("auto enable"); err != nil {
				return err
			}
			if err := a.rule().Install(a.cfg.BinaryPath, a.cfg.Aggressive); err != nil {
				return err
			}
			fmt.Printf("  ✓ Installed %s\n", a.cfg.UdevRule)
			return nil
		},
	}
	disable := &cobra.Command{
		Use:   "disable",
		Short: "Remove the udev rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot("auto disable"); err != nil {
				return err
			}
			removed, err := a.rule().Remove()
			if err != nil {
				return err
			}
			if !removed {
				fmt.Println("  → Auto-switch was not enabled.")
				return nil
			}
			fmt.Printf("  ✓ Removed %s\n", a.cfg.UdevRule)
			return nil
		},
	}
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether auto-switch is enabled and the power source",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.out.AutoStatus(auto.CurrentStatus(a.root, a.rule(), a.store()), a.cfg.UdevRule)
		},
	}
	cmd.AddCommand(enable, disable, statusCmd)
	return cmd
}

func snapshotCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture the hardware inputs bop reads as JSON (for bug reports)",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("output")
			snap := snapshot.Capture(a.root, a.runner)
			if file == "" {
				return a.out.Export(snap)
			}
			if err := snap.Save(file); err != nil {
				return err
			}
			fmt.Printf("  ✓ Wrote %d files to %s\n", len(snap.Files), file)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write to FILE instead of stdout")
	return cmd
}

func historyCommand(a *app, openHistory func()) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent audits and apply/revert runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			if !a.cfg.HistoryEnabled {
				return fmt.Errorf("history is disabled (history_enabled: false)")
			}
			openHistory()
			if a.history.Store == nil {
				return fmt.Errorf("history database %s is unavailable", a.cfg.HistoryDB)
			}
			entries, err := a.history.Store.Recent(limit)
			if err != nil {
				return err
			}
			return a.out.History(entries)
		},
	}
	cmd.Flags().Int("limit", 20, "Number of entries to show")
	return cmd
}
