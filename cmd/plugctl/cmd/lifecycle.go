package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/plughost/plughost"
	"github.com/plughost/plughost/luaplugin"
)

// NewInstallCommand creates the install command.
func NewInstallCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "install <name> <version>",
		Short: "Install a plugin, dispatching its install event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := newKernel(*configPath)
			if err != nil {
				return err
			}
			report, err := k.manager.Install(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed %s %s: %s\n", args[0], args[1], reportSummary(report))
			return nil
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "update <name> <version>",
		Short: "Update an installed plugin, dispatching its update event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := newKernel(*configPath)
			if err != nil {
				return err
			}
			report, err := k.manager.Update(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s to %s: %s\n", args[0], args[1], reportSummary(report))
			return nil
		},
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an installed plugin, dispatching its remove event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := newKernel(*configPath)
			if err != nil {
				return err
			}
			report, err := k.manager.Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s: %s\n", args[0], reportSummary(report))
			return nil
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed plugins and their versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := newKernel(*configPath)
			if err != nil {
				return err
			}
			records, err := k.store.All(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no plugins installed")
				return nil
			}

			identifiers := make([]string, 0, len(records))
			for identifier := range records {
				identifiers = append(identifiers, identifier)
			}
			sort.Strings(identifiers)
			for _, identifier := range identifiers {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", identifier, records[identifier])
			}
			return nil
		},
	}
}

// NewEventsCommand creates the events command, which prints the canonical
// lifecycle event names for a plugin name.
func NewEventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events <name>",
		Short: "Print the canonical lifecycle event names for a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identifier, err := plughost.DeriveIdentifier(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plughost.InstallEventName(identifier))
			fmt.Fprintln(cmd.OutOrStdout(), plughost.UpdateEventName(identifier))
			fmt.Fprintln(cmd.OutOrStdout(), plughost.RemoveEventName(identifier))
			return nil
		},
	}
}

// registerManifestPlugins loads every manifest in the configured directory
// and registers the subscriptions of any Lua plugin it points at, so
// lifecycle dispatches reach in-process handlers.
func (k *kernel) registerManifestPlugins() error {
	manifests, err := plughost.LoadManifestDir(k.config.ManifestDir)
	if err != nil {
		return err
	}

	for _, manifest := range manifests {
		if manifest.Main == "" {
			continue
		}
		script := filepath.Join(filepath.Dir(manifest.Path()), manifest.Main)
		plugin, err := luaplugin.Load(script)
		if err != nil {
			k.logger.Error("Skipping broken plugin script", "manifest", manifest.Path(), "script", script, "error", err)
			continue
		}
		if _, err := k.registry.RegisterSubscriber(plugin); err != nil {
			k.logger.Error("Failed to register plugin subscriptions", "plugin", plugin.Name(), "error", err)
			continue
		}
		k.logger.Debug("Registered plugin", "plugin", plugin.Name(), "version", plugin.Version())
	}
	return nil
}
