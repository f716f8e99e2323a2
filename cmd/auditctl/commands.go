package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/patrimonio/internal/application"
	"github.com/JonMunkholm/patrimonio/internal/core"
	"github.com/JonMunkholm/patrimonio/internal/tui"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var encoding string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Importa um CSV de patrimônio, substituindo os itens atuais",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return ctx.withApp(cmd.Context(), true, func(app *application.App) error {
				enc := encoding
				if enc == "" {
					enc = app.Config.Import.Encoding
				}
				ictx, cancel := context.WithTimeout(cmd.Context(), app.Config.Import.Timeout)
				defer cancel()

				n, err := app.Session.ImportReader(ictx, f, enc)
				if err != nil {
					return err
				}
				fmt.Fprintf(ctx.out, "%d itens importados de %s\n", n, filepath.Base(args[0]))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&encoding, "encoding", "e", "", "File encoding, e.g. utf-8, windows-1252 (default from config)")
	return cmd
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var (
		actionName string
		to         string
	)

	cmd := &cobra.Command{
		Use:   "check TOMBO",
		Short: "Mostra um item e, com --action, registra o resultado da conferência",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), true, func(app *application.App) error {
				item, err := app.Session.Lookup(args[0])
				if err != nil {
					return err
				}
				if actionName == "" {
					fmt.Fprintln(ctx.out, renderItems([]core.Item{item}))
					return nil
				}

				action, err := core.ParseAction(actionName)
				if err != nil {
					return err
				}
				updated, err := app.Session.Apply(cmd.Context(), action, []string{item.ID}, ctx.inputFor(to))
				if err != nil {
					return err
				}
				fmt.Fprintln(ctx.out, renderItems(updated))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&actionName, "action", "a", "", "found, not_found, transfer or dispose")
	cmd.Flags().StringVar(&to, "to", "", "New responsible for --action transfer")
	return cmd
}

func newTransferCommand(ctx *commandContext) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "transfer TOMBO...",
		Short: "Solicita a transferência de um ou mais itens",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), true, func(app *application.App) error {
				updated, err := app.Session.Apply(cmd.Context(), core.ActionTransfer, args, ctx.inputFor(to))
				if err != nil {
					return err
				}
				fmt.Fprintln(ctx.out, renderItems(updated))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "New responsible (prompted when omitted on a terminal)")
	return cmd
}

// inputFor answers the transfer prompt with name, or asks on the terminal.
func (c *commandContext) inputFor(name string) core.TextInput {
	if strings.TrimSpace(name) != "" {
		return core.StaticInput(name)
	}
	return c.textInput()
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Resumo da conferência por status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), true, func(app *application.App) error {
				c := app.Session.Counts()
				rows := make([][]string, 0, len(core.Statuses))
				for _, st := range core.Statuses {
					rows = append(rows, []string{string(st), strconv.Itoa(c.Of(st))})
				}
				cols := []column{{title: "Status"}, {title: "Itens", numeric: true}}
				fmt.Fprintln(ctx.out, renderTable(cols, rows, []string{"Total", strconv.Itoa(c.Total)}))
				if c.Total > 0 {
					fmt.Fprintf(ctx.out, "Processados: %d de %d (%.0f%%)\n", c.Processed(), c.Total, 100*float64(c.Processed())/float64(c.Total))
				}
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		query     string
		page      int
		processed bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lista os itens, com busca e paginação",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), true, func(app *application.App) error {
				var (
					p   core.Page
					err error
				)
				if processed {
					p, err = app.Session.Processed(page)
				} else {
					p, err = app.Session.View(query, page)
				}
				if err != nil {
					return err
				}
				if len(p.Items) == 0 {
					fmt.Fprintln(ctx.out, "Nenhum item encontrado")
					return nil
				}
				fmt.Fprintln(ctx.out, renderItems(p.Items))
				fmt.Fprintf(ctx.out, "Página %d de %d (%d itens)\n", p.Page, p.TotalPages, p.TotalItems)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Search tombo, description or responsible")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	cmd.Flags().BoolVar(&processed, "processed", false, "List only items already processed")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Exporta o relatório da conferência em CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), true, func(app *application.App) error {
				if out == "-" {
					_, err := app.Session.Export(ctx.out, app.ExportOptions())
					return err
				}
				path := out
				if path == "" {
					path = core.ExportFileName(app.Config.Export.FilePrefix, time.Now())
				}
				n, err := exportFile(app, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(ctx.out, "%d itens exportados para %s\n", n, path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, - for stdout (default report_<date>.csv)")
	return cmd
}

func exportFile(app *application.App, path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := app.Session.Export(f, app.ExportOptions())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	var yes, no bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restaura ou descarta a sessão salva",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes && no {
				return fmt.Errorf("--yes and --no are mutually exclusive")
			}
			return ctx.withApp(cmd.Context(), false, func(app *application.App) error {
				count, pending := app.Session.PendingRestore()
				if !pending {
					fmt.Fprintln(ctx.out, "Nenhuma sessão salva")
					return nil
				}
				if !yes && !no {
					return ctx.settleRestore(cmd.Context(), app.Session, count)
				}
				n, err := app.Session.ResolveRestore(cmd.Context(), yes)
				if err != nil {
					return err
				}
				if yes {
					fmt.Fprintf(ctx.out, "Sessão restaurada: %d itens\n", n)
				} else {
					fmt.Fprintln(ctx.out, "Sessão salva descartada")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Restore without asking")
	cmd.Flags().BoolVarP(&no, "no", "n", false, "Discard without asking")
	return cmd
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Apaga todos os dados da conferência, inclusive a sessão salva",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if !ctx.isInteractive() {
					return fmt.Errorf("refusing to reset without --yes")
				}
				ok, answered := ctx.confirm("Apagar todos os dados da conferência?", false)
				if !answered || !ok {
					return nil
				}
			}
			return ctx.withApp(cmd.Context(), false, func(app *application.App) error {
				app.Session.Reset(cmd.Context())
				fmt.Fprintln(ctx.out, "Dados apagados")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newTUICommand(ctx *commandContext) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Abre o console interativo de conferência",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Log lines would corrupt the full-screen view.
			ctx.logOut = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				ctx.logOut = f
			}
			return ctx.withApp(cmd.Context(), false, func(app *application.App) error {
				return tui.Run(cmd.Context(), app.Session, tui.Options{
					Export:       app.ExportOptions(),
					ExportPrefix: app.Config.Export.FilePrefix,
				})
			})
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file while the console is open")
	return cmd
}

func renderItems(items []core.Item) string {
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{it.ID, it.DisplayDescription(), it.DisplayResponsible(), string(it.Status), it.OriginalResponsible}
	}
	return renderTable(itemColumns, rows, nil)
}
