package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"beadloom/internal/config"
	"beadloom/internal/graph"
	"beadloom/internal/index"
	"beadloom/internal/initscaffold"
	"beadloom/internal/store"
)

var (
	initBootstrap bool
	initImportDir string
	initPreset    string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize beadloom in the current project",
	Long: `Performs cold-start initialization: creates .beadloom/, seeds a
first-cut graph shard, and runs a full reindex.

With no flags, init prompts interactively for a preset. --bootstrap skips
the prompt and seeds a bare root domain node. --import DIR copies an
existing project's graph shards instead of seeding new ones. --preset
NAME applies a built-in directory-naming convention (see "beadloom init
--help" presets list).`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initBootstrap, "bootstrap", false, "Seed a bare graph without prompting")
	initCmd.Flags().StringVar(&initImportDir, "import", "", "Import graph shards from another project's .beadloom/_graph")
	initCmd.Flags().StringVar(&initPreset, "preset", "", "Apply a built-in directory-naming preset (monolith, service, library)")
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	root, err := resolveWorkspace()
	if err != nil {
		return newConfigError("%v", err)
	}

	if _, err := os.Stat(filepath.Join(root, ".beadloom", "beadloom.db")); err == nil {
		fmt.Println("beadloom is already initialized in this project. Run `beadloom reindex` to refresh it.")
		return nil
	}

	preset := initPreset
	importDir := initImportDir

	if !initBootstrap && importDir == "" && preset == "" {
		if err := runInitWizard(&preset, &importDir); err != nil {
			return err
		}
	}

	if importDir != "" {
		n, err := initscaffold.ImportGraph(root, importDir)
		if err != nil {
			return fmt.Errorf("importing graph from %s: %w", importDir, err)
		}
		fmt.Printf("Imported %d graph shard(s) from %s\n", n, importDir)
		if err := os.MkdirAll(filepath.Join(root, ".beadloom"), 0o755); err != nil {
			return fmt.Errorf("creating .beadloom: %w", err)
		}
		if _, statErr := os.Stat(config.ConfigPath(root)); os.IsNotExist(statErr) {
			if err := config.Save(root, config.DefaultConfig()); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
		}
	} else {
		result, err := initscaffold.Bootstrap(root, preset, nil)
		if err != nil {
			return fmt.Errorf("bootstrapping project: %w", err)
		}
		fmt.Printf("Seeded %d node(s) in %s (language: %s)\n", result.NodesSeeded, result.GraphShardPath, orUnknown(result.Language))
	}

	st, err := store.Open(storePath(root))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	cfg, err := config.Load(root)
	if err != nil {
		return newConfigError("%v", err)
	}

	loadResult, err := graph.Load(ctx, st, graph.GraphDir(root))
	if err != nil {
		return fmt.Errorf("loading graph: %w", err)
	}
	for _, w := range loadResult.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	reindexResult, err := index.Reindex(ctx, st, root, cfg, "", true)
	if err != nil {
		return fmt.Errorf("reindexing: %w", err)
	}
	for _, w := range reindexResult.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	fmt.Printf("Initialized. %d node(s), %d edge(s), %d doc(s) indexed.\n",
		loadResult.NodesLoaded, loadResult.EdgesLoaded, reindexResult.DocsIndexed)
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// runInitWizard prompts for a preset and an optional import directory when
// init is run with no flags — the interactive onboarding path.
func runInitWizard(preset, importDir *string) error {
	var usePreset bool
	var chosenPreset string
	var useImport bool
	var dir string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Seed the graph from a directory-naming preset?").
				Value(&usePreset),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which preset matches this project?").
				Options(
					huh.NewOption("monolith — api/models/services/domains subdirectories", "monolith"),
					huh.NewOption("service — the whole project is one service node", "service"),
					huh.NewOption("library — pkg/internal become feature nodes", "library"),
				).
				Value(&chosenPreset),
		).WithHideFunc(func() bool { return !usePreset }),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Import graph shards from another project instead?").
				Value(&useImport),
		).WithHideFunc(func() bool { return usePreset }),
		huh.NewGroup(
			huh.NewInput().
				Title("Path to the other project").
				Value(&dir),
		).WithHideFunc(func() bool { return usePreset || !useImport }),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("running init wizard: %w", err)
	}

	if usePreset {
		*preset = chosenPreset
	} else if useImport {
		*importDir = dir
	}
	return nil
}
