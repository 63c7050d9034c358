package labels

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ErrIndexOutOfRange is returned when a class id falls outside the loaded label table.
var ErrIndexOutOfRange = errors.New("class id out of label table range")

// Table is an ordered list of class names where the index is the class id.
type Table []string

// Load reads a newline-delimited label file, one class name per line.
//
// Arguments:
//   - path: The path to the label file.
//
// Returns:
//   - Table: The class names in file order.
//   - error: An error if the file cannot be opened or read.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open label file %s", path)
	}
	defer f.Close()

	table, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read label file %s", path)
	}
	return table, nil
}

// Parse reads class names from r, one per line.
//
// The trailing newline is stripped, so a file ending in "\n" does not produce
// an empty final class. CRLF line endings are accepted. Lines have no length limit.
//
// Arguments:
//   - r: The reader to consume.
//
// Returns:
//   - Table: The class names.
//   - error: An error if reading fails.
func Parse(r io.Reader) (Table, error) {
	table := Table{}
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "failed to read labels")
		}
		if line != "" {
			line = strings.TrimSuffix(line, "\n")
			table = append(table, strings.TrimSuffix(line, "\r"))
		}
		if err == io.EOF {
			return table, nil
		}
	}
}

// Resolver maps class ids to labels.
//
// With a table, ids resolve to Named labels and ids outside the table fail
// with ErrIndexOutOfRange. Without a table, every id resolves to a Raw label.
type Resolver struct {
	table Table
}

// NewResolver creates a resolver over the given table. A nil table selects raw mode.
//
// Arguments:
//   - table: The label table, or nil.
//
// Returns:
//   - *Resolver: The resolver.
func NewResolver(table Table) *Resolver {
	return &Resolver{table: table}
}

// HasTable reports whether the resolver was given a label table.
func (r *Resolver) HasTable() bool {
	return r != nil && r.table != nil
}

// Len returns the number of entries in the label table.
func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.table)
}

// Resolve maps a class id to its label.
//
// Arguments:
//   - id: The class id.
//
// Returns:
//   - Label: The named label, or a raw label when no table is loaded.
//   - error: ErrIndexOutOfRange if a table is loaded and id is outside it.
func (r *Resolver) Resolve(id int) (Label, error) {
	if !r.HasTable() {
		return Raw(id), nil
	}
	if id < 0 || id >= len(r.table) {
		return Label{}, errors.Wrapf(ErrIndexOutOfRange, "class id %d, table size %d", id, len(r.table))
	}
	return Named(id, r.table[id]), nil
}
