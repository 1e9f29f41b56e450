package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"stageplan/internal/core"
	"stageplan/internal/project"
	"stageplan/internal/sandbox"
	"stageplan/pkg/domain"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "stagectl",
		Short:         "Replay, inspect and archive staged build projects",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}
	root.SetOut(a.out)
	root.PersistentFlags().StringVar(&a.configPath, "config", "stagectl.yaml", "config file path")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(a),
		newReplayCmd(a),
		newInspectCmd(a),
		newProjectsCmd(a),
		newDeleteCmd(a),
		newArchiveCmd(a),
		newArchivesCmd(a),
		newRestoreCmd(a),
	)
	return root
}

func newInitCmd(a *app) *cobra.Command {
	var stages int
	cmd := &cobra.Command{
		Use:   "init <project>",
		Short: "Create an empty project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stages == 0 {
				stages = a.cfg.Engine.StageCount
			}
			if stages < 1 {
				return fmt.Errorf("stage count must be positive, got %d", stages)
			}
			ctx := cmd.Context()
			store, err := a.snapshotStore(ctx)
			if err != nil {
				return err
			}
			if _, err := store.Load(ctx, args[0]); err == nil {
				return fmt.Errorf("project %q already exists", args[0])
			} else if !errors.Is(err, domain.ErrSnapshotNotFound) {
				return err
			}
			protos := domain.NewPrototypeInfo()
			world := sandbox.New()
			engine := core.NewEngine(project.NewContent(domain.StageNumber(stages), protos), protos, world, world, a.engineOptions()...)
			if err := engine.Save(ctx, store, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s with %d stages\n", args[0], stages)
			return nil
		},
	}
	cmd.Flags().IntVar(&stages, "stages", 0, "stage count (defaults to engine.stage_count)")
	return cmd
}

func newReplayCmd(a *app) *cobra.Command {
	var (
		projectID string
		resume    bool
		dryRun    bool
		archiveIt bool
	)
	cmd := &cobra.Command{
		Use:   "replay <script.yaml>",
		Short: "Replay a scripted editing session and save the resulting project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open script: %w", err)
			}
			script, err := sandbox.DecodeScript(f)
			_ = f.Close()
			if err != nil {
				return err
			}
			if projectID == "" {
				projectID = script.Project
			}
			if projectID == "" && !dryRun {
				return core.ErrEmptyProjectID
			}

			ctx := cmd.Context()
			protos := script.PrototypeInfo()
			world := sandbox.New(sandbox.WithMaxCables(a.cfg.Engine.MaxCableConnections))
			var engine *core.Engine
			if resume {
				store, err := a.snapshotStore(ctx)
				if err != nil {
					return err
				}
				engine, err = core.Load(ctx, store, projectID, protos, world, world, a.engineOptions()...)
				if err != nil {
					return err
				}
			} else {
				engine = core.NewEngine(project.NewContent(script.Stages, protos), protos, world, world, a.engineOptions()...)
			}

			results := sandbox.NewReplayer(engine, world).Run(script.Steps)
			if err := printResults(cmd, results); err != nil {
				return err
			}
			if dryRun {
				return nil
			}
			store, err := a.snapshotStore(ctx)
			if err != nil {
				return err
			}
			if err := engine.Save(ctx, store, projectID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d entities)\n", projectID, engine.Content().Len())
			if !archiveIt {
				return nil
			}
			ar, err := a.archiveStore(ctx)
			if err != nil {
				return err
			}
			entry, err := ar.Put(ctx, engine.Snapshot(projectID))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", entry.Key)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id (defaults to the script's project)")
	cmd.Flags().BoolVar(&resume, "resume", false, "apply the script on top of the stored project")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "replay without saving")
	cmd.Flags().BoolVar(&archiveIt, "archive", false, "also write an archive copy")
	return cmd
}

func printResults(cmd *cobra.Command, results []sandbox.StepResult) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tEVENT\tENTITY\tRESULT")
	for _, r := range results {
		if r.Event == "" {
			result := "nothing to undo"
			if r.Undone {
				result = "undone"
			}
			fmt.Fprintf(tw, "%d\tundo\t-\t%s\n", r.Index, result)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", r.Index, r.Event, r.Entity, r.Code)
	}
	return tw.Flush()
}

// projectSummary is the inspect output.
type projectSummary struct {
	Project  string          `yaml:"project"`
	Stages   int             `yaml:"stages"`
	SavedAt  string          `yaml:"saved_at,omitempty"`
	Cables   int             `yaml:"cables"`
	Circuits int             `yaml:"circuits"`
	Entities []entitySummary `yaml:"entities"`
}

type entitySummary struct {
	ID         domain.EntityID     `yaml:"id"`
	Name       string              `yaml:"name"`
	Position   domain.Position     `yaml:"position"`
	FirstStage domain.StageNumber  `yaml:"first_stage"`
	LastStage  *domain.StageNumber `yaml:"last_stage,omitempty"`
	DiffStages []int               `yaml:"diff_stages,omitempty"`
	Remnant    bool                `yaml:"settings_remnant,omitempty"`
}

func summarize(snap domain.ProjectSnapshot) projectSummary {
	s := projectSummary{
		Project:  snap.ID,
		Stages:   int(snap.StageCount),
		Cables:   len(snap.Cables),
		Circuits: len(snap.Circuits),
		Entities: make([]entitySummary, 0, len(snap.Entities)),
	}
	if !snap.SavedAt.IsZero() {
		s.SavedAt = snap.SavedAt.UTC().Format(time.RFC3339)
	}
	for _, e := range snap.Entities {
		es := entitySummary{
			ID:         e.ID,
			Name:       e.FirstValue.Name(),
			Position:   e.Position,
			FirstStage: e.FirstStage,
			LastStage:  e.LastStage,
			Remnant:    e.SettingsRemnant,
		}
		for st := range e.Diffs {
			es.DiffStages = append(es.DiffStages, int(st))
		}
		sort.Ints(es.DiffStages)
		s.Entities = append(s.Entities, es)
	}
	sort.Slice(s.Entities, func(i, j int) bool { return s.Entities[i].ID < s.Entities[j].ID })
	return s
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <project>",
		Short: "Print a stored project as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.snapshotStore(ctx)
			if err != nil {
				return err
			}
			snap, err := store.Load(ctx, args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(summarize(snap)); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func newProjectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List stored projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.snapshotStore(ctx)
			if err != nil {
				return err
			}
			ids, err := store.List(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project>",
		Short: "Delete a stored project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.snapshotStore(ctx)
			if err != nil {
				return err
			}
			ok, err := store.Delete(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newArchiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <project>",
		Short: "Copy a stored project into the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.snapshotStore(ctx)
			if err != nil {
				return err
			}
			snap, err := store.Load(ctx, args[0])
			if err != nil {
				return err
			}
			ar, err := a.archiveStore(ctx)
			if err != nil {
				return err
			}
			entry, err := ar.Put(ctx, snap)
			if err != nil {
				return err
			}
			a.logger.Info("project archived", "project", args[0], "key", entry.Key, "driver", ar.Driver())
			fmt.Fprintln(cmd.OutOrStdout(), entry.Key)
			return nil
		},
	}
}

func newArchivesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archives <project>",
		Short: "List archived copies of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ar, err := a.archiveStore(ctx)
			if err != nil {
				return err
			}
			entries, err := ar.List(ctx, args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tSTAGES\tENTITIES\tSIZE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", e.Key, e.StageCount, e.Entities, e.Size)
			}
			return tw.Flush()
		},
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	var latest bool
	cmd := &cobra.Command{
		Use:   "restore <project> [key]",
		Short: "Restore a project from the archive into the snapshot store",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && !latest {
				return errors.New("pass an archive key or --latest")
			}
			ctx := cmd.Context()
			ar, err := a.archiveStore(ctx)
			if err != nil {
				return err
			}
			var snap domain.ProjectSnapshot
			if len(args) == 2 {
				snap, err = ar.Load(ctx, args[1])
			} else {
				snap, _, err = ar.Latest(ctx, args[0])
			}
			if err != nil {
				return err
			}
			snap.ID = args[0]
			store, err := a.snapshotStore(ctx)
			if err != nil {
				return err
			}
			if err := store.Save(ctx, snap); err != nil {
				return fmt.Errorf("save project %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s (%d entities)\n", args[0], len(snap.Entities))
			return nil
		},
	}
	cmd.Flags().BoolVar(&latest, "latest", false, "restore the most recent archive")
	return cmd
}
