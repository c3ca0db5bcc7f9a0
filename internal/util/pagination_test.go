package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	link := "http://api/x?page=3"

	tests := []struct {
		name       string
		page       int
		count      int
		next, prev *string
		want       Page
	}{
		{"empty", 1, 0, nil, nil, Page{Number: 1, Total: 0, Pages: 1}},
		{"first of many", 1, 35, &link, nil, Page{Number: 1, Total: 35, Pages: 4, HasNext: true}},
		{"middle", 2, 35, &link, &link, Page{Number: 2, Total: 35, Pages: 4, HasPrev: true, HasNext: true}},
		{"last", 4, 35, nil, &link, Page{Number: 4, Total: 35, Pages: 4, HasPrev: true}},
		{"page below one", 0, 5, nil, nil, Page{Number: 1, Total: 5, Pages: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.page, tt.count, DefaultPageSize, tt.next, tt.prev)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageNeighbours(t *testing.T) {
	p := Page{Number: 3}
	assert.Equal(t, 2, p.Prev())
	assert.Equal(t, 4, p.Next())
}
