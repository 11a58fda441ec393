package dbdriver

import "testing"

func TestScalarToString(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"abc", "abc"},
		{[]byte("abc"), "abc"},
		{42, "42"},
	}
	for _, tc := range cases {
		if got := scalarToString(tc.in); got != tc.want {
			t.Errorf("scalarToString(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestColumnStrings(t *testing.T) {
	rs := &ResultSet{
		Columns: []string{"name"},
		Rows: []Row{
			{"name": "customers"},
			{"name": []byte("orders")},
		},
	}
	got := columnStrings(rs, "name")
	want := []string{"customers", "orders"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
