package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/ipdd/internal/doc"
)

// ErrRecordIndex is returned when a record index falls outside the input list
var ErrRecordIndex = errors.New("record index out of range")

// LoadTechnology reads a technology input file. When the top level is a list
// and index is non-negative, that record is selected and its details mapping
// unwrapped. A negative index returns the file as-is.
func LoadTechnology(path string, index int) (*doc.Node, error) {
	root, err := loadJSON(path)
	if err != nil {
		return nil, err
	}
	if !root.IsSequence() || index < 0 {
		return root, nil
	}
	if index >= len(root.Items) {
		return nil, fmt.Errorf("%w: record_index %d out of range (0..%d)", ErrRecordIndex, index, len(root.Items)-1)
	}
	return unwrapDetails(root.Items[index]), nil
}

// LoadRecords reads every record of an input file for batch runs. A mapping
// at the top level is a single record.
func LoadRecords(path string) ([]*doc.Node, error) {
	root, err := loadJSON(path)
	if err != nil {
		return nil, err
	}
	if !root.IsSequence() {
		return []*doc.Node{root}, nil
	}
	records := make([]*doc.Node, len(root.Items))
	for i, item := range root.Items {
		records[i] = unwrapDetails(item)
	}
	return records, nil
}

func unwrapDetails(item *doc.Node) *doc.Node {
	if details := item.Get("details"); details.IsMapping() {
		return details
	}
	return item
}

func loadJSON(path string) (*doc.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if !utf8.Valid(data) {
		data = []byte(strings.ToValidUTF8(string(data), "�"))
	}
	root, err := doc.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse input %s: %w", path, err)
	}
	return root, nil
}
