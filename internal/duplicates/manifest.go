package duplicates

import (
	"bytes"
	"fmt"

	"github.com/dustin/go-humanize"

	"gotidy/internal/config"
	"gotidy/pkg/models"
)

// ManifestName is the file written into every group directory.
const ManifestName = "manifest.txt"

const timeLayout = "2006-01-02 15:04:05"

// Placement is what happened to one member of a group.
type Placement struct {
	Record      models.FileRecord
	Destination string // empty when the member was left in place
	Reason      string
}

// Manifest describes one processed group, members in keep order.
type Manifest struct {
	Number  int
	RunID   string
	Hash    string
	Size    int64
	Keep    config.KeepPolicy
	Members []Placement
}

// Render formats the manifest as UTF-8 text.
func (m Manifest) Render() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Duplicate group #%d\n", m.Number)
	if m.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", m.RunID)
	}
	fmt.Fprintf(&b, "Hash (sha256): %s\n", m.Hash)
	fmt.Fprintf(&b, "Files: %d\n", len(m.Members))
	fmt.Fprintf(&b, "Size: %s bytes (%s)\n", humanize.Comma(m.Size), humanize.IBytes(uint64(m.Size)))
	fmt.Fprintf(&b, "Kept: %s\n\n", m.Keep)

	fmt.Fprintf(&b, "Files (kept first, then by %s):\n", m.Keep)
	for i, p := range m.Members {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.Record.Path)
		fmt.Fprintf(&b, "   Modified: %s\n", p.Record.ModifiedAt.Format(timeLayout))
		fmt.Fprintf(&b, "   Created:  %s\n", p.Record.CreatedAt.Format(timeLayout))
		switch {
		case p.Destination != "":
			fmt.Fprintf(&b, "   Placed:   %s\n", p.Destination)
		case p.Reason != "":
			fmt.Fprintf(&b, "   Left in place: %s\n", p.Reason)
		default:
			fmt.Fprintf(&b, "   Left in place\n")
		}
		b.WriteString("\n")
	}
	return b.Bytes()
}
