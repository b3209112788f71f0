package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"notesync/internal/domain"
)

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

// readDocument takes the document from --file, "-" for stdin, or the
// literal --document flag.
func readDocument(cmd *cobra.Command, file, literal string) (string, error) {
	switch file {
	case "":
		return literal, nil
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	default:
		data, err := os.ReadFile(file)
		return string(data), err
	}
}

func notFound(id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("note %s not found", id)
	}
	return err
}

func newNewCmd(a *app) *cobra.Command {
	var file, document string

	cmd := &cobra.Command{
		Use:     "new [name]",
		GroupID: "notes",
		Short:   "Create a note (a title is generated when no name is given)",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, file, document)
			if err != nil {
				return err
			}

			var name string
			if len(args) == 1 {
				name = args[0]
			}
			note, err := store.CreateNote(ctx, name, doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", note.ID, note.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the document from a file (- for stdin)")
	cmd.Flags().StringVarP(&document, "document", "d", "", "document content")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		GroupID: "notes",
		Short:   "List notes, most recently updated first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			notes, err := store.ListNotes(ctx)
			if err != nil {
				return err
			}
			pending, err := store.ListPendingChanges(ctx)
			if err != nil {
				return err
			}
			unsynced := make(map[string]bool, len(pending))
			for _, e := range pending {
				unsynced[e.NoteID] = true
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tUPDATED\t")
			for _, n := range notes {
				mark := ""
				if unsynced[n.ID] {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, n.Name, formatMillis(n.UpdatedAt), mark)
			}
			return tw.Flush()
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "show <id>",
		GroupID: "notes",
		Short:   "Print a note's document",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			note, err := store.GetNote(ctx, args[0])
			if err != nil {
				return notFound(args[0], err)
			}
			if note.Deleted {
				return fmt.Errorf("note %s was deleted", note.ID)
			}
			fmt.Fprint(cmd.OutOrStdout(), note.Document)
			return nil
		},
	}
}

func newSaveCmd(a *app) *cobra.Command {
	var file, document string

	cmd := &cobra.Command{
		Use:     "save <id>",
		GroupID: "notes",
		Short:   "Replace a note's document",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			if file == "" && !cmd.Flags().Changed("document") {
				file = "-"
			}
			doc, err := readDocument(cmd, file, document)
			if err != nil {
				return err
			}
			note, err := store.SaveNote(ctx, args[0], doc)
			if err != nil {
				return notFound(args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s at %s\n", note.ID, formatMillis(note.UpdatedAt))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the document from a file (- for stdin, the default)")
	cmd.Flags().StringVarP(&document, "document", "d", "", "document content")
	return cmd
}

func newRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rename <id> <name>",
		GroupID: "notes",
		Short:   "Rename a note",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			note, err := store.RenameNote(ctx, args[0], args[1])
			if err != nil {
				return notFound(args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", note.ID, note.Name)
			return nil
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		GroupID: "notes",
		Short:   "Delete a note",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.store(ctx)
			if err != nil {
				return err
			}
			if _, err := store.DeleteNote(ctx, args[0]); err != nil {
				return notFound(args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
