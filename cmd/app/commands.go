package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/disiqueira/gotree/v3"
	"github.com/urfave/cli/v3"

	"github.com/starford/jotter/internal"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/notebook"
)

func openNotebook(cmd *cli.Command) (*notebook.Notebook, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	nb, _, err := internal.OpenNotebook(cfg)
	return nb, err
}

// loadAll reads every partition. Unreadable files are reported on stderr;
// the rest are still printed.
func loadAll(nb *notebook.Notebook) {
	if err := nb.LoadAll(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}

func listFiles(_ context.Context, cmd *cli.Command) error {
	nb, err := openNotebook(cmd)
	if err != nil {
		return err
	}
	infos, err := nb.Partitions()
	if err != nil {
		return err
	}
	fmt.Print(partitionTree(nb.Title(), infos, nb.PartitionDate))
	return nil
}

// partitionTree renders partitions under year and month nodes. infos are
// in name order, which is date order for one notebook.
func partitionTree(title string, infos []models.PartitionInfo, dateOf func(string) (civil.Date, bool)) string {
	root := gotree.New(title)
	years := make(map[int]gotree.Tree)
	months := make(map[string]gotree.Tree)
	for _, info := range infos {
		d, ok := dateOf(info.Name)
		if !ok {
			continue
		}
		year, ok := years[d.Year]
		if !ok {
			year = root.Add(fmt.Sprintf("%04d", d.Year))
			years[d.Year] = year
		}
		key := fmt.Sprintf("%04d-%02d", d.Year, d.Month)
		month, ok := months[key]
		if !ok {
			month = year.Add(key)
			months[key] = month
		}
		month.Add(fmt.Sprintf("%s (%d B)", info.Name, info.Size))
	}
	return root.Print()
}

func listTags(_ context.Context, cmd *cli.Command) error {
	nb, err := openNotebook(cmd)
	if err != nil {
		return err
	}
	loadAll(nb)
	for _, tag := range nb.Tags() {
		fmt.Printf("%s\t%d\n", tag, nb.TagCount(tag))
	}
	return nil
}

func queryNotes(_ context.Context, cmd *cli.Command) error {
	q, err := buildQuery(cmd.String("from"), cmd.String("to"), cmd.StringSlice("tag"))
	if err != nil {
		return err
	}
	nb, err := openNotebook(cmd)
	if err != nil {
		return err
	}
	loadAll(nb)
	printNotes(os.Stdout, nb, nb.Query(q))
	return nil
}

func buildQuery(from, to string, tags []string) (notebook.Query, error) {
	var q notebook.Query
	var err error
	if from != "" {
		if q.From, err = civil.ParseDate(from); err != nil {
			return q, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if to != "" {
		if q.To, err = civil.ParseDate(to); err != nil {
			return q, fmt.Errorf("invalid --to: %w", err)
		}
	}
	if len(tags) > 0 {
		q.Tags = tags
	}
	return q, nil
}

func printNotes(w io.Writer, nb *notebook.Notebook, notes []*models.Note) {
	c := nb.Codec()
	for _, n := range notes {
		line := c.FormatTimestamp(n.Timestamp) + "  " + n.Text
		if len(n.Tags) > 0 {
			line += "  [" + strings.Join(n.Tags, " ") + "]"
		}
		fmt.Fprintln(w, line)
	}
}
