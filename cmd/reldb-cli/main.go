// Command reldb-cli is a small embedding demo for the reldb engine: it
// wires up an in-memory database, runs a handful of host-call-surface
// commands against it (create_table, insert, select, explain, observe),
// and prints the results, in the spirit of the teacher's cmd/client
// interactive session but driving the engine in-process instead of over a
// wire connection (this engine is embeddable, not networked — spec.md §6.2
// assumes synchronous in-process call semantics).
package main

import (
	"fmt"
	"os"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/tuannm99/reldb"
	"github.com/tuannm99/reldb/internal/catalog"
	"github.com/tuannm99/reldb/internal/expr"
	"github.com/tuannm99/reldb/internal/observe"
	"github.com/tuannm99/reldb/internal/plan"
	"github.com/tuannm99/reldb/internal/rowstore"
	"github.com/tuannm99/reldb/internal/typesystem"
)

func demoDatabase() (*reldb.Database, error) {
	eng := reldb.New(reldb.DefaultConfig())
	db, err := eng.CreateDatabase("demo")
	if err != nil {
		return nil, err
	}
	_, err = db.CreateTable("items", []catalog.Column{
		{Name: "id", Type: typesystem.Int64, PrimaryKey: true},
		{Name: "name", Type: typesystem.String, Nullable: true},
	}, nil)
	if err != nil {
		return nil, err
	}
	_, err = db.Insert("items", []rowstore.Row{
		{typesystem.Value{Tag: typesystem.Int64, I64: 1}, typesystem.Value{Tag: typesystem.String, Str: "a"}},
		{typesystem.Value{Tag: typesystem.Int64, I64: 2}, typesystem.Value{Tag: typesystem.String, Str: "b"}},
		{typesystem.Value{Tag: typesystem.Int64, I64: 3}, typesystem.Value{Tag: typesystem.String, Str: "c"}},
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func itemsEqualsTwo() plan.Node {
	return &plan.Filter{
		Pred: expr.Cmp{Op: expr.Eq, L: expr.Col{Name: "id"}, R: expr.Lit{Value: typesystem.Value{Tag: typesystem.Int64, I64: 2}}},
		Child: &plan.Scan{Table: "items"},
	}
}

func runExplain(cmd *cobra.Command, args []string) error {
	db, err := demoDatabase()
	if err != nil {
		return err
	}
	ex, err := db.Explain(itemsEqualsTwo())
	if err != nil {
		return err
	}
	fmt.Println("logical:")
	pp.Println(ex.Logical)
	fmt.Println("physical:")
	pp.Println(ex.Physical)
	return nil
}

func runSelect(cmd *cobra.Command, args []string) error {
	db, err := demoDatabase()
	if err != nil {
		return err
	}
	rows, err := db.Select(itemsEqualsTwo())
	if err != nil {
		return err
	}
	for _, r := range rows {
		pp.Println(r)
	}
	return nil
}

func runObserve(cmd *cobra.Command, args []string) error {
	db, err := demoDatabase()
	if err != nil {
		return err
	}
	h, err := db.Observe(&plan.Scan{Table: "items"})
	if err != nil {
		return err
	}
	defer h.Dispose()

	_, err = h.Subscribe(func(res observe.Result) {
		fmt.Printf("observe: %d rows\n", len(res.Rows))
	})
	if err != nil {
		return err
	}

	if _, err := db.Insert("items", []rowstore.Row{
		{typesystem.Value{Tag: typesystem.Int64, I64: 4}, typesystem.Value{Tag: typesystem.String, Str: "d"}},
	}); err != nil {
		return err
	}
	return nil
}

func main() {
	root := &cobra.Command{
		Use:   "reldb-cli",
		Short: "Demo embedding of the reldb in-memory relational engine",
	}
	root.AddCommand(&cobra.Command{
		Use:   "explain",
		Short: "Explain a sample query against an in-memory demo database",
		RunE:  runExplain,
	})
	root.AddCommand(&cobra.Command{
		Use:   "select",
		Short: "Run a sample query against an in-memory demo database",
		RunE:  runSelect,
	})
	root.AddCommand(&cobra.Command{
		Use:   "observe",
		Short: "Subscribe to a live query and trigger one write against it",
		RunE:  runObserve,
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
