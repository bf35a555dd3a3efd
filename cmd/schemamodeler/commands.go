package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tordrt/schemamodeler"
	"github.com/tordrt/schemamodeler/internal/diagram"
	"github.com/tordrt/schemamodeler/internal/prompt"
)

func newProvisionCmd(a *app) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create the Northwind sample schema",
		Long: `Creates the Northwind tables (Categories, Customers, Employees, Shippers,
Suppliers, Products, Orders, OrderDetails) in the target database. Existing
tables are left alone, so the command can be run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			if err := svc.Provisioner.Create(ctx, a.cfg.DatabaseURL); err != nil {
				return err
			}
			if !list {
				return nil
			}
			return printTables(cmd, svc, a.cfg.DatabaseURL)
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List the tables after provisioning")
	return cmd
}

func newTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables of a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			return printTables(cmd, svc, a.cfg.DatabaseURL)
		},
	}
}

func printTables(cmd *cobra.Command, svc *schemamodeler.Service, databaseURL string) error {
	tables, err := svc.Provisioner.ListTables(cmd.Context(), databaseURL)
	if err != nil {
		return err
	}
	for _, t := range tables {
		fmt.Fprintln(cmd.OutOrStdout(), t)
	}
	return nil
}

func newReflectCmd(a *app) *cobra.Command {
	var (
		format     string
		outputFile string
		outputDir  string
		tables     string
		exclude    string
	)

	cmd := &cobra.Command{
		Use:   "reflect",
		Short: "Print the physical schema of a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir != "" && outputFile != "" {
				return fmt.Errorf("cannot use both --output-dir and --output flags")
			}

			out := &schemamodeler.OutputOptions{
				Writer:    cmd.OutOrStdout(),
				OutputDir: outputDir,
				Format:    format,
			}
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() {
					if err := f.Close(); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to close output file: %v\n", err)
					}
				}()
				out.Writer = f
			}

			opts := &schemamodeler.Options{
				Tables:        parseTableList(tables),
				ExcludeTables: parseTableList(exclude),
			}
			return schemamodeler.ExtractAndFormat(cmd.Context(), a.cfg.DatabaseURL, opts, out)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, markdown, json or ddl")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Output directory for multi-file output (text or markdown)")
	cmd.Flags().StringVarP(&tables, "tables", "t", "", "Specific tables (comma-separated, optional)")
	cmd.Flags().StringVarP(&exclude, "exclude", "x", "", "Tables to leave out (comma-separated, optional)")
	return cmd
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		roles  []string
		render bool
		output string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a logical model, business description or UML diagram",
		Long: fmt.Sprintf(`Reflects the database, binds its description into each role's prompt and
prints the model's answer. Roles run in the order given.

Roles: %s`, strings.Join(prompt.RoleNames(), ", ")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(roles) == 0 {
				return fmt.Errorf("at least one --role is required (known roles: %s)", strings.Join(prompt.RoleNames(), ", "))
			}
			if render && dryRun {
				return fmt.Errorf("cannot use --render with --dry-run")
			}

			svc, err := a.service(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if dryRun {
				for i, role := range roles {
					p, err := svc.Generator.Prompt(ctx, role, a.cfg.DatabaseURL)
					if err != nil {
						return err
					}
					writeSection(out, roles, i, role, p)
				}
				return nil
			}

			results, err := svc.Generator.GenerateAll(ctx, roles, a.cfg.DatabaseURL)
			for i, r := range results {
				writeSection(out, roles, i, r.Role.String(), r.Text)
			}
			if err != nil {
				return err
			}

			if !render {
				return nil
			}
			for _, r := range results {
				if r.Role == prompt.UMLModeler {
					return svc.RenderDiagram(ctx, r.Text, output)
				}
			}
			return fmt.Errorf("--render needs the %s role", prompt.UMLModeler)
		},
	}
	cmd.Flags().StringArrayVarP(&roles, "role", "r", nil, "Role to run (repeatable)")
	cmd.Flags().BoolVar(&render, "render", false, "Render the uml_modeler output to a PNG")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Diagram output path (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the rendered prompts without calling the model")
	return cmd
}

// writeSection prints one role's text, headed by the role when several run
func writeSection(w io.Writer, roles []string, i int, role, text string) {
	if len(roles) > 1 {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "=== %s ===\n", role)
	}
	fmt.Fprintln(w, strings.TrimRight(text, "\n"))
}

func newRenderCmd(a *app) *cobra.Command {
	var (
		input    string
		output   string
		printURL bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a PlantUML file through the PlantUML server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, input)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			if printURL {
				fmt.Fprintln(cmd.OutOrStdout(), svc.Diagrams.URL(diagram.ExtractPlantUML(text)))
			}
			return svc.RenderDiagram(cmd.Context(), text, output)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "PlantUML file, - for stdin")
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG output path (default from config)")
	cmd.Flags().BoolVar(&printURL, "print-url", false, "Print the renderer URL")
	return cmd
}

func newEncodeCmd() *cobra.Command {
	var decode bool

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode PlantUML text from stdin into a renderer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, "-")
			if err != nil {
				return err
			}
			if decode {
				plain, err := diagram.Decode(strings.TrimSpace(text))
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), plain)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), diagram.Encode(text))
			return nil
		},
	}
	cmd.Flags().BoolVar(&decode, "decode", false, "Decode a token back into PlantUML text")
	return cmd
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" || path == "" {
		data, err := io.ReadAll(bufio.NewReader(cmd.InOrStdin()))
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reflection and generation over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			return svc.Server(addr).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "schemamodeler %s (commit %s, built %s)\n", version, commit, date)
			return nil
		},
	}
}
