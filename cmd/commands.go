package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/meghashyamc/contextview/api"
	"github.com/meghashyamc/contextview/config"
	"github.com/meghashyamc/contextview/logger"
	"github.com/meghashyamc/contextview/models"
	"github.com/spf13/cobra"
)

type cliOptions struct {
	env    string
	output string
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "contextview",
		Short:         "Search, graph and mind-map client for the Context backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.env, "env", os.Getenv("ENV"), "Config environment (development, test, production)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "", "Output format: table, json or yaml (default table on a terminal, json otherwise)")

	root.AddCommand(
		newServeCommand(opts),
		newSearchCommand(opts),
		newGraphCommand(opts),
		newMapsCommand(opts),
		newIndexCommand(opts),
		newRemoveCommand(opts),
		newHealthCommand(opts),
	)
	return root
}

func newServeCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.env)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return api.Run(cmd.Context(), cfg)
		},
	}
}

func newSearchCommand(opts *cliOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over indexed files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDependencies(opts, func(deps *api.Dependencies, out *printer) error {
				results, err := deps.Search.Search(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				if limit > 0 && len(results) > limit {
					results = results[:limit]
				}
				return out.searchResults(results)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n results")
	return cmd
}

func newGraphCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "graph [entity]",
		Short: "Show the knowledge graph, or the neighbourhood of one entity",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDependencies(opts, func(deps *api.Dependencies, out *printer) error {
				entity := strings.Join(args, " ")
				if _, err := deps.Graph.Fetch(cmd.Context(), entity); err != nil {
					return fmt.Errorf("%s", deps.Graph.View().Error)
				}
				return out.graph(deps.Graph.View())
			})
		},
	}
}

func newMapsCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maps",
		Short: "Manage mind maps",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List mind maps",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDependencies(opts, func(deps *api.Dependencies, out *printer) error {
					mindMaps, err := deps.MapList.Load(cmd.Context())
					if err != nil {
						return err
					}
					return out.mindMaps(mindMaps)
				})
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show the nodes and edges of a mind map",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				mapID, err := parseMapID(args[0])
				if err != nil {
					return err
				}
				return withDependencies(opts, func(deps *api.Dependencies, out *printer) error {
					// Loading the list first gives the editor the map name.
					if _, err := deps.MapList.Load(cmd.Context()); err != nil {
						return err
					}
					editor := deps.Maps.Editor(mapID)
					if _, err := editor.Load(cmd.Context()); err != nil {
						return fmt.Errorf("%s", editor.View().Error)
					}
					return out.mapData(editor.View())
				})
			},
		},
		&cobra.Command{
			Use:   "create <name>",
			Short: "Create a mind map",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDependencies(opts, func(deps *api.Dependencies, out *printer) error {
					created, err := deps.MapList.CreateMap(cmd.Context(), strings.Join(args, " "))
					if err != nil {
						return err
					}
					return out.mindMaps([]models.MindMap{created})
				})
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a mind map",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				mapID, err := parseMapID(args[0])
				if err != nil {
					return err
				}
				return withDependencies(opts, func(deps *api.Dependencies, out *printer) error {
					if err := deps.MapList.DeleteMap(cmd.Context(), mapID); err != nil {
						return err
					}
					return out.status(models.StatusResponse{Status: "success", Message: fmt.Sprintf("Deleted map %d", mapID)})
				})
			},
		},
	)
	return cmd
}

func newIndexCommand(opts *cliOptions) *cobra.Command {
	var caption string

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Index a file on the backend host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDependencies(opts, func(deps *api.Dependencies, out *printer) error {
				response, err := deps.Files.Index(cmd.Context(), args[0], caption)
				if err != nil {
					return err
				}
				return out.status(response)
			})
		},
	}
	cmd.Flags().StringVar(&caption, "caption", "", "Caption stored with the file")
	return cmd
}

func newRemoveCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>",
		Short: "Remove a file from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDependencies(opts, func(deps *api.Dependencies, out *printer) error {
				response, err := deps.Files.Remove(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return out.status(response)
			})
		},
	}
}

func newHealthCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the backend once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDependencies(opts, func(deps *api.Dependencies, out *printer) error {
				view := deps.Health.CheckNow(cmd.Context())
				if err := out.health(view); err != nil {
					return err
				}
				if view.Status == models.HealthDown {
					return fmt.Errorf("backend is down: %s", view.Error)
				}
				return nil
			})
		},
	}
}

// withDependencies builds the shared stack without the local stores, which a running gateway holds open.
func withDependencies(opts *cliOptions, run func(deps *api.Dependencies, out *printer) error) error {
	cfg, err := config.Load(opts.env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out, err := newPrinter(os.Stdout, opts.output)
	if err != nil {
		return err
	}

	deps, err := api.NewDependencies(logger.NewForEnv(cfg.GetEnv()), cfg, false)
	if err != nil {
		return err
	}
	defer deps.Close()

	return run(deps, out)
}

func parseMapID(arg string) (int, error) {
	mapID, err := strconv.Atoi(arg)
	if err != nil || mapID <= 0 {
		return 0, fmt.Errorf("invalid map id %q", arg)
	}
	return mapID, nil
}
