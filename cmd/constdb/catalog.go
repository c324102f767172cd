package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andreyvit/constdb"
)

var catalogCmd = &cobra.Command{
	Use:     "catalog [db...]",
	Short:   "Print databases, tables and record counts",
	Long:    `Open the root directory and print the catalog: every database (or only the given ones), its tables with their primary keys, and record counts. Do not run it against a root a server is using.`,
	PreRunE: bindFlags,
	RunE:    runCatalog,
}

func init() {
	key := "json"
	catalogCmd.Flags().Bool(key, false, wrapString("Print the catalog as JSON"))
}

type catalogTable struct {
	constdb.TableSettings
	Records int `json:"records"`
}

type catalogDB struct {
	Name   string         `json:"name"`
	Tables []catalogTable `json:"tables"`
}

func runCatalog(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	engine, err := openEngine(logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	dbs, err := collectCatalog(engine, args)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(dbs)
	}
	return printCatalog(cmd.OutOrStdout(), dbs)
}

func collectCatalog(engine *constdb.Engine, only []string) ([]catalogDB, error) {
	var result []catalogDB
	for _, db := range engine.ListDatabases() {
		if len(only) > 0 && !slices.Contains(only, db.Name) {
			continue
		}
		tables, err := engine.ListTables(db.Name)
		if err != nil {
			return nil, err
		}
		stats, err := engine.Stats(db.Name)
		if err != nil {
			return nil, err
		}
		entry := catalogDB{Name: db.Name, Tables: []catalogTable{}}
		for _, ts := range tables {
			entry.Tables = append(entry.Tables, catalogTable{TableSettings: ts, Records: stats[ts.Name]})
		}
		result = append(result, entry)
	}
	for _, name := range only {
		if !engine.HasDatabase(name) {
			return nil, fmt.Errorf("database[%s] not found", name)
		}
	}
	return result, nil
}

func printCatalog(w io.Writer, dbs []catalogDB) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATABASE\tTABLE\tPRIMARY KEY\tRECORDS")
	for _, db := range dbs {
		if len(db.Tables) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\t0\n", db.Name)
			continue
		}
		for _, t := range db.Tables {
			var pk []string
			for _, f := range t.PrimaryKey {
				pk = append(pk, f.Name+":"+f.Type.String())
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", db.Name, t.Name, strings.Join(pk, ","), t.Records)
		}
	}
	return tw.Flush()
}
