package main

import (
	"encoding/json"
	"fmt"

	"github.com/dgallion1/pagequiz/internal/chapter"
	"github.com/dgallion1/pagequiz/internal/document"
	"github.com/spf13/cobra"
)

func chaptersCmd() *cobra.Command {
	var withOutline bool

	cmd := &cobra.Command{
		Use:   "chapters <pdf>",
		Short: "Print the chapter page ranges questions are drawn from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := document.Open(args[0])
			if err != nil {
				return err
			}
			defer doc.Close()

			out := map[string]any{
				"name":     doc.Name(),
				"pages":    doc.PageCount(),
				"hash":     doc.ContentHash(),
				"chapters": chapterList(doc),
			}
			if withOutline {
				out["outline"] = doc.Outline()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return fmt.Errorf("write json: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withOutline, "outline", false, "also print the raw outline entries")
	return cmd
}

func chapterList(doc *document.Document) []chapter.Range {
	ranges := chapter.Ranges(doc.Outline(), doc.PageCount())
	if ranges == nil {
		return []chapter.Range{}
	}
	return ranges
}
