package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jasperwreed/unip/internal/app"
	"github.com/jasperwreed/unip/internal/tui"
)

func NewThemeCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [dark|light]",
		Short:     "Show or set the terminal UI theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{tui.ThemeDark, tui.ThemeLight},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := NewValidator().ValidateTheme(args[0]); err != nil {
					return err
				}
			}

			a, err := openApp(cmd, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.RequireStore()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if len(args) == 0 {
				theme, err := store.Theme(ctx)
				if err != nil {
					return fmt.Errorf("failed to read theme: %w", err)
				}
				if theme == "" {
					theme = tui.ThemeDark
				}
				fmt.Fprintln(cmd.OutOrStdout(), theme)
				return nil
			}

			if err := store.SetTheme(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to save theme: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Theme set to %s\n", args[0])
			return nil
		},
	}
}
