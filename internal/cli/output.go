package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rescale/filequery/internal/constants"
	"github.com/rescale/filequery/internal/fetch"
)

// printResults writes one row per item of list. Absent and empty results
// both print the "No files" line.
func printResults(w io.Writer, list fetch.List) {
	if list.Count() == 0 {
		fmt.Fprintln(w, "No files")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tMODIFIED\tTYPE\tSTARRED")
	for i := 0; i < list.Count(); i++ {
		item, err := list.ItemAt(i)
		if err != nil {
			break
		}
		starred := ""
		if item.Starred {
			starred = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			list.ItemID(i),
			item.Title,
			item.ModifiedDate.Format(constants.ModifiedDateLayout),
			item.MimeType,
			starred,
		)
	}
	_ = tw.Flush()
}
