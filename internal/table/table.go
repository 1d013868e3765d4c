// Package table renders aligned plain-text tables for CLI output.
package table

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/ralph-pm/ralph/internal/util"
)

type Table struct {
	headers []string
	rows    [][]string
}

func New(headers ...string) Table {
	return Table{headers: headers}
}

func (t *Table) AddRow(row ...string) {
	if len(row) != len(t.headers) {
		util.Panicf("wrong number of columns in table row (%d != %d)",
			len(row), len(t.headers))
	}
	t.rows = append(t.rows, row)
}

// FromStructs builds a table from a slice of structs, one column per
// exported field, using the field's "pretty" tag (or its name) as the
// header.
func FromStructs(items interface{}) Table {
	value := reflect.ValueOf(items)
	if value.Kind() != reflect.Slice {
		util.Panicf("table.FromStructs: not a slice: %T", items)
	}

	elem := value.Type().Elem()
	var headers []string
	for i := 0; i < elem.NumField(); i++ {
		header := elem.Field(i).Tag.Get("pretty")
		if header == "" {
			header = elem.Field(i).Name
		}
		headers = append(headers, header)
	}

	t := New(headers...)
	for i := 0; i < value.Len(); i++ {
		var row []string
		for j := 0; j < elem.NumField(); j++ {
			row = append(row, fmt.Sprintf("%v", value.Index(i).Field(j).Interface()))
		}
		t.AddRow(row...)
	}
	return t
}

func (t *Table) SortBy(header string) {
	index := -1
	for i := range t.headers {
		if t.headers[i] == header {
			index = i
			break
		}
	}
	if index < 0 {
		util.Panicf("no such header: %s", header)
	}
	sort.SliceStable(t.rows, func(i, j int) bool {
		return t.rows[i][index] < t.rows[j][index]
	})
}

func (t *Table) Print() {
	widths := make([]int, len(t.headers))
	for j := range t.headers {
		widths[j] = len(t.headers[j])
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if len(t.rows[i][j]) > widths[j] {
				widths[j] = len(t.rows[i][j])
			}
		}
	}

	fields := make([]string, len(t.headers))
	for j := range t.headers {
		fields[j] = t.headers[j] + strings.Repeat(" ", widths[j]-len(t.headers[j]))
	}
	fmt.Println(strings.Join(fields, "   "))
	for j := range t.headers {
		fields[j] = strings.Repeat("-", widths[j])
	}
	fmt.Println(strings.Join(fields, "   "))
	for i := range t.rows {
		for j := range t.rows[i] {
			fields[j] = t.rows[i][j] + strings.Repeat(" ", widths[j]-len(t.rows[i][j]))
		}
		fmt.Println(strings.TrimRight(strings.Join(fields, "   "), " "))
	}
}
