package store

import "testing"

func TestEntryFilterDisabled(t *testing.T) {
	f, err := newEntryFilter("  ")
	if err != nil {
		t.Fatalf("blank filter: %v", err)
	}
	if !f.Eval("lithium:anything", []byte(`{"a":1}`)) {
		t.Fatalf("disabled filter must pass everything")
	}
}

func TestEntryFilterExpressions(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		key   string
		value string
		want  bool
	}{
		{
			name:  "key prefix",
			expr:  `key.startsWith("lithium:user.")`,
			key:   "lithium:user.theme",
			value: `"dark"`,
			want:  true,
		},
		{
			name:  "key prefix miss",
			expr:  `key.startsWith("lithium:user.")`,
			key:   "lithium:session.token",
			value: `"abc"`,
			want:  false,
		},
		{
			name:  "json field",
			expr:  `json.plan == "pro"`,
			key:   "lithium:account",
			value: `{"plan":"pro","seats":4}`,
			want:  true,
		},
		{
			name:  "json field miss",
			expr:  `json.plan == "pro"`,
			key:   "lithium:account",
			value: `{"plan":"free"}`,
			want:  false,
		},
		{
			name:  "size bound",
			expr:  `size < 10`,
			key:   "lithium:counter",
			value: `42`,
			want:  true,
		},
		{
			name:  "text contains",
			expr:  `text.contains("dark")`,
			key:   "lithium:user.theme",
			value: `"dark"`,
			want:  true,
		},
		{
			name:  "json access on non-object payload",
			expr:  `json.plan == "pro"`,
			key:   "lithium:counter",
			value: `42`,
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := newEntryFilter(tt.expr)
			if err != nil {
				t.Fatalf("compile %q: %v", tt.expr, err)
			}
			if got := f.Eval(tt.key, []byte(tt.value)); got != tt.want {
				t.Fatalf("Eval(%q, %q) = %v, want %v", tt.key, tt.value, got, tt.want)
			}
		})
	}
}

func TestEntryFilterBadExpression(t *testing.T) {
	if _, err := newEntryFilter("key.("); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := newEntryFilter("missing_var == 1"); err == nil {
		t.Fatalf("expected check error for unknown variable")
	}
}
