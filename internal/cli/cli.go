package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Funclose/Ef-HomeWork/internal/app"
	"github.com/Funclose/Ef-HomeWork/internal/config"
	"github.com/Funclose/Ef-HomeWork/internal/console"
	"github.com/Funclose/Ef-HomeWork/internal/database"
	"github.com/Funclose/Ef-HomeWork/internal/entity"
	"github.com/Funclose/Ef-HomeWork/internal/seeder"
	ordersvc "github.com/Funclose/Ef-HomeWork/internal/service/order"
	"github.com/Funclose/Ef-HomeWork/pkg/errorbank"
)

// ConfigEnv names the environment variable holding the default settings path.
const ConfigEnv = "EFSHOP_CONFIG"

const stopTimeout = 10 * time.Second

type options struct {
	configPath string
}

func (o *options) source() config.Source {
	return config.Source{Path: o.configPath}
}

// NewRootCommand builds the root efshop CLI command. Without a subcommand it
// runs the demo.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "efshop",
		Short:         "Orders and products store",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath(), "Path to the settings file holding the connection strings")

	root.AddCommand(newDemoCmd(opts))
	root.AddCommand(newSeedCmd(opts))
	root.AddCommand(newSchemaCmd(opts))
	root.AddCommand(newOrdersCmd(opts))
	root.AddCommand(newStartCmd(opts))
	root.AddCommand(newWorkerCmd(opts))

	return root
}

// Execute runs the efshop CLI until it finishes or receives SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func defaultConfigPath() string {
	if path := os.Getenv(ConfigEnv); path != "" {
		return path
	}
	return config.DefaultPath
}

func newDemoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Reset and seed the store, then print every order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd, opts)
		},
	}
}

func runDemo(cmd *cobra.Command, opts *options) error {
	var (
		seed *seeder.Seeder
		svc  *ordersvc.Service
	)
	return runWithOutput(cmd, opts, fx.Populate(&seed, &svc), func(ctx context.Context, p *console.Printer) error {
		seeded, err := seed.Reset(ctx)
		if err != nil {
			return err
		}
		if err := p.Summary([]*entity.Order{seeded}); err != nil {
			return err
		}
		orders, err := svc.List(ctx)
		if err != nil {
			return err
		}
		return p.Orders(orders)
	})
}

func newSeedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Drop and recreate the schema, then insert the seed data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *seeder.Seeder
			return runWithOutput(cmd, opts, fx.Populate(&seed), func(ctx context.Context, p *console.Printer) error {
				seeded, err := seed.Reset(ctx)
				if err != nil {
					return err
				}
				return p.Summary([]*entity.Order{seeded})
			})
		},
	}
}

func newSchemaCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the database schema",
	}

	ensureCmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create missing tables without touching data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var conns *database.Connections
			return runWithOutput(cmd, opts, fx.Populate(&conns), func(ctx context.Context, p *console.Printer) error {
				if err := database.EnsureCreated(ctx, conns.Writer); err != nil {
					return err
				}
				return p.Line("schema ready")
			})
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate every table; all data is lost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var conns *database.Connections
			return runWithOutput(cmd, opts, fx.Populate(&conns), func(ctx context.Context, p *console.Printer) error {
				if err := database.Reset(ctx, conns.Writer); err != nil {
					return err
				}
				return p.Line("schema reset")
			})
		},
	}

	cmd.AddCommand(ensureCmd, resetCmd)
	return cmd
}

func newOrdersCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Query and modify orders",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print every order with its products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *ordersvc.Service
			return runWithOutput(cmd, opts, fx.Populate(&svc), func(ctx context.Context, p *console.Printer) error {
				orders, err := svc.List(ctx)
				if err != nil {
					return err
				}
				return p.Orders(orders)
			})
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var svc *ordersvc.Service
			return runWithOutput(cmd, opts, fx.Populate(&svc), func(ctx context.Context, p *console.Printer) error {
				order, err := svc.Get(ctx, id)
				if err != nil {
					return err
				}
				return p.Order(order)
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an order and its products",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var svc *ordersvc.Service
			return runWithOutput(cmd, opts, fx.Populate(&svc), func(ctx context.Context, p *console.Printer) error {
				if err := svc.Delete(ctx, id); err != nil {
					return err
				}
				return p.Line(fmt.Sprintf("Order %d deleted.", id))
			})
		},
	}

	var (
		products []string
		attach   []int64
	)
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Place an order with new and existing products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			order := &entity.Order{}
			for _, raw := range products {
				product, err := parseProduct(raw)
				if err != nil {
					return err
				}
				order.Products = append(order.Products, product)
			}
			for _, id := range attach {
				order.Products = append(order.Products, &entity.Product{ID: id})
			}

			var svc *ordersvc.Service
			return runWithOutput(cmd, opts, fx.Populate(&svc), func(ctx context.Context, p *console.Printer) error {
				if err := svc.Add(ctx, order); err != nil {
					return err
				}
				stored, err := svc.Get(ctx, order.ID)
				if err != nil {
					return err
				}
				return p.Order(stored)
			})
		},
	}
	addCmd.Flags().StringArrayVar(&products, "product", nil, "New product as Name=Price (repeatable)")
	addCmd.Flags().Int64SliceVar(&attach, "attach", nil, "ID of an existing product to move into the order (repeatable)")

	cmd.AddCommand(listCmd, getCmd, deleteCmd, addCmd)
	return cmd
}

func newStartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"serve"},
		Short:   "Run the HTTP and gRPC servers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.New(opts.source(), app.Module, app.Logged))
		},
	}
}

func newWorkerCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run worker engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.New(opts.source(), app.Worker, app.Logged))
		},
	})
	return cmd
}

func runUntilDone(ctx context.Context, application *fx.App) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

// runWithOutput starts the core graph, runs fn and writes its output only
// when every step succeeded.
func runWithOutput(cmd *cobra.Command, opts *options, populate fx.Option, fn func(context.Context, *console.Printer) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	application := app.New(opts.source(), app.Core, populate, fx.NopLogger)
	if err := application.Err(); err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	runErr := fn(ctx, console.NewPrinter(&buf))

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	stopErr := application.Stop(stopCtx)

	if runErr != nil {
		return runErr
	}
	if stopErr != nil {
		return stopErr
	}
	_, err := buf.WriteTo(cmd.OutOrStdout())
	return err
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errorbank.BadRequest(fmt.Sprintf("invalid order id %q", raw), errorbank.WithCause(err))
	}
	return id, nil
}

func parseProduct(raw string) (*entity.Product, error) {
	i := strings.LastIndex(raw, "=")
	if i <= 0 || i == len(raw)-1 {
		return nil, errorbank.BadRequest(fmt.Sprintf("product %q must be Name=Price", raw))
	}
	price, err := decimal.NewFromString(strings.TrimSpace(raw[i+1:]))
	if err != nil {
		return nil, errorbank.BadRequest(fmt.Sprintf("invalid price in %q", raw), errorbank.WithCause(err))
	}
	if price.IsNegative() {
		return nil, errorbank.BadRequest(fmt.Sprintf("negative price in %q", raw))
	}
	return &entity.Product{Name: strings.TrimSpace(raw[:i]), Price: price}, nil
}
