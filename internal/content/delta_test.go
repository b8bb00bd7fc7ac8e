package content

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompose_EditsDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		base   Delta
		change Delta
		want   string
	}{
		{name: "insert into empty", base: Delta{}, change: Delta{}.Insert("hello"), want: "hello"},
		{name: "append", base: New("hello"), change: Delta{}.Retain(5).Insert(" world"), want: "hello world"},
		{name: "prepend", base: New("world"), change: Delta{}.Insert("hello "), want: "hello world"},
		{name: "delete middle", base: New("abcdef"), change: Delta{}.Retain(2).Delete(2), want: "abef"},
		{name: "replace", base: New("cat"), change: Delta{}.Retain(1).Insert("u").Delete(1), want: "cut"},
		{name: "delete all", base: New("gone"), change: Delta{}.Delete(4), want: ""},
		{name: "runes", base: New("héllo"), change: Delta{}.Retain(1).Delete(1).Insert("e"), want: "hello"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.base.Compose(tt.change)
			require.Equal(t, tt.want, got.String())
		})
	}
}

func TestDiff_ComposeRoundTrip(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"", "new card"},
		{"old card", ""},
		{"The hero leaves home.", "The hero reluctantly leaves home."},
		{"abc", "abc"},
		{"aaaa", "aa"},
		{"chapter one", "chapter two"},
	}
	for _, p := range pairs {
		from, to := New(p[0]), New(p[1])
		change := from.Diff(to)
		got := from.Compose(change)
		require.True(t, got.Equal(to), "diff %q -> %q composed to %q", p[0], p[1], got.String())
	}
}

func TestDiff_KeepsInvalidUTF8(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"a\xffb", "a\xffbc"},
		{"a\xffb", "a\xfeb"},
		{"\xff\xfe", "\xfe\xff"},
		{"caf\xc3", "café"},
		{"", "\x80"},
	}
	for _, p := range pairs {
		from, to := New(p[0]), New(p[1])
		change := from.Diff(to)
		require.False(t, change.IsEmpty() && p[0] != p[1], "diff %q -> %q lost the change", p[0], p[1])
		got := from.Compose(change)
		require.Equal(t, p[1], got.String(), "diff %q -> %q", p[0], p[1])
	}
}

func TestDiff_WordEdits(t *testing.T) {
	t.Parallel()

	from := New("The hero leaves home at dawn.")
	to := New("The heroine leaves the castle at dusk.")
	change := from.Diff(to).(Delta)
	require.Equal(t, to.String(), from.Compose(change).String())

	// Semantic cleanup keeps the unchanged words as retains.
	retained := 0
	for _, op := range change.Ops {
		retained += op.Retain
	}
	require.GreaterOrEqual(t, retained, len("The hero")+len(" leaves "))
}

func TestCompose_SplitsInsertsByRune(t *testing.T) {
	t.Parallel()

	// Deleting inside an insert made of multibyte and invalid runes keeps the neighbours intact.
	doc := New("é\xffü")
	got := doc.Compose(Delta{}.Retain(1).Delete(1))
	require.Equal(t, "éü", got.String())
	require.Equal(t, 2, got.(Delta).Len())
}

func TestDiff_NoChangeIsEmpty(t *testing.T) {
	t.Parallel()

	change := New("same").Diff(New("same"))
	require.True(t, change.Equal(Delta{}))
	require.True(t, change.IsEmpty())
}

func TestComposeChanges(t *testing.T) {
	t.Parallel()

	// Two consecutive changes composed together equal applying them one by one.
	doc := New("abc")
	c1 := Delta{}.Retain(3).Insert("d")
	c2 := Delta{}.Delete(1)
	combined := c1.compose(c2)

	one := doc.Compose(c1).Compose(c2)
	two := doc.Compose(combined)
	require.Equal(t, "bcd", one.String())
	require.True(t, one.Equal(two))
}

func TestPush_CanonicalOrder(t *testing.T) {
	t.Parallel()

	d := Delta{}.Retain(1).Delete(2).Insert("x")
	require.Equal(t, []Op{{Retain: 1}, {Insert: "x"}, {Delete: 2}}, d.Ops)
}

func TestFromJSON(t *testing.T) {
	t.Parallel()

	d, err := FromJSON([]byte(`"plain"`))
	require.NoError(t, err)
	require.Equal(t, "plain", d.String())

	d, err = FromJSON([]byte(`{"ops":[{"retain":2},{"insert":"z"}]}`))
	require.NoError(t, err)
	require.Equal(t, []Op{{Retain: 2}, {Insert: "z"}}, d.Ops)

	d, err = FromJSON(nil)
	require.NoError(t, err)
	require.True(t, d.IsEmpty())
}
