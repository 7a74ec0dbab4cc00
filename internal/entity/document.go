package entity

import (
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/joseph-ayodele/order-transformer/constants"
)

// RawUpload is a document as handed over by the upload collaborator.
type RawUpload struct {
	ID     uuid.UUID        `json:"id"`
	Name   string           `json:"name"`
	Source constants.Source `json:"source"`
	Format constants.Format `json:"format"`
	Bytes  []byte           `json:"-"`
}

// RawDocument is the reader output. Exactly one of Lines, Root or Rows is the primary
// content for the format; HTML documents also carry their visible text as Lines.
type RawDocument struct {
	ID       uuid.UUID        `json:"id"`
	Name     string           `json:"name"`
	Source   constants.Source `json:"source"`
	Format   constants.Format `json:"format"`
	Encoding string           `json:"encoding_hint"`

	Lines []string   `json:"lines,omitempty"`
	Root  *html.Node `json:"-"`
	Rows  [][]string `json:"rows,omitempty"`
}

// Text joins the line content.
func (d *RawDocument) Text() string {
	n := 0
	for _, l := range d.Lines {
		n += len(l) + 1
	}
	b := make([]byte, 0, n)
	for i, l := range d.Lines {
		if i > 0 {
			b = append(b, '\n')
		}
		b = append(b, l...)
	}
	return string(b)
}
