package main

import (
	"reflect"
	"testing"
)

func TestRewriteDirectCardLookupArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"storytree"},
			want: []string{"storytree"},
		},
		{
			name: "position first token",
			in:   []string{"storytree", "1.0.2"},
			want: []string{"storytree", "nodes", "show", "1.0.2"},
		},
		{
			name: "position after value flag",
			in:   []string{"storytree", "--story", "draft", "0.0.0"},
			want: []string{"storytree", "--story", "draft", "nodes", "show", "0.0.0"},
		},
		{
			name: "value flag that looks like a position",
			in:   []string{"storytree", "--dir", "1.0.0", "typology"},
			want: []string{"storytree", "--dir", "1.0.0", "typology"},
		},
		{
			name: "position after equals flag",
			in:   []string{"storytree", "--dir=./tmp-story", "2.1.0"},
			want: []string{"storytree", "--dir=./tmp-story", "nodes", "show", "2.1.0"},
		},
		{
			name: "position after bool flag",
			in:   []string{"storytree", "--pretty", "0.0.1"},
			want: []string{"storytree", "--pretty", "nodes", "show", "0.0.1"},
		},
		{
			name: "position after double dash",
			in:   []string{"storytree", "--dir", "./tmp-story", "--", "0.0.1"},
			want: []string{"storytree", "--dir", "./tmp-story", "--", "nodes", "show", "0.0.1"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"storytree", "nodes", "show", "0.0.1"},
			want: []string{"storytree", "nodes", "show", "0.0.1"},
		},
		{
			name: "unknown command not rewritten",
			in:   []string{"storytree", "wat"},
			want: []string{"storytree", "wat"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteDirectCardLookupArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteDirectCardLookupArgs:\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}
