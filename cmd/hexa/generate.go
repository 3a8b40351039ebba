package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/simp-lee/hexa/internal/scaffold"
)

type resourceOptions struct {
	fields []string
	dir    string
	module string
	force  bool
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen", "g"},
		Short:   "Generate project code",
	}
	cmd.AddCommand(newResourceCmd())
	return cmd
}

func newResourceCmd() *cobra.Command {
	opts := &resourceOptions{}
	cmd := &cobra.Command{
		Use:   "resource <name>",
		Short: "Generate a resource module",
		Long: `Generate model.go and module.go for a CRUD resource.

The module gets SQL and MongoDB repositories, request validation and
routes guarded by <package>:read and <package>:write permissions.

Field types: ` + fmt.Sprint(scaffold.SupportedTypes()) + `

Examples:
  hexa generate resource order --fields number:string,total:float
  hexa generate resource order-item --fields sku,qty:int --dir internal/module --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResource(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&opts.fields, "fields", "f", nil, "comma-separated name:type field definitions")
	f.StringVar(&opts.dir, "dir", filepath.Join("internal", "module"), "parent directory of the generated package")
	f.StringVar(&opts.module, "module", "", "Go module path (default: read from ./go.mod)")
	f.BoolVar(&opts.force, "force", false, "overwrite existing files")
	_ = cmd.MarkFlagRequired("fields")
	return cmd
}

func runResource(cmd *cobra.Command, name string, opts *resourceOptions) error {
	modulePath := opts.module
	if modulePath == "" {
		p, err := scaffold.ModulePath("go.mod")
		if err != nil {
			return fmt.Errorf("detect module path (pass --module): %w", err)
		}
		modulePath = p
	}

	r, err := scaffold.NewResource(name, modulePath, opts.fields)
	if err != nil {
		return err
	}
	files, err := scaffold.Render(r)
	if err != nil {
		return err
	}
	paths, err := scaffold.Write(filepath.Join(opts.dir, r.Package), files, opts.force)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, p := range paths {
		fmt.Fprintf(out, "created %s\n", p)
	}
	fmt.Fprintf(out, "\nRegister it in internal/app/app.go:\n\t%s.NewSQLModule(db, guard, logger)\n", r.Package)
	fmt.Fprintf(out, "and migrate %s.%s.\n", r.Package, r.Type)
	return nil
}
