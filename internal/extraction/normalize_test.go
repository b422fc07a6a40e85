package extraction

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf", "a\r\nb\r\n", "a\nb"},
		{"export marker", "\ufeff________________Hello", "Hello"},
		{"misdecoded marker", "\u00ef\u00bb\u00bf________________Hello", "Hello"},
		{"marker mid text", "one\ufeff________________two", "onetwo"},
		{"trim", "  \n\ttext\n ", "text"},
		{"empty", "", ""},
		{"whitespace only", " \r\n ", ""},
		{"marker revealed by trim", " \ufeff________________ ", ""},
		{"nested markers", "\ufeff_______\ufeff_________________________", ""},
		{"keeps lone cr", "a\rb", "a\rb"},
		{"cr revealed crlf", "a\r\r\n\nb", "a\n\nb"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			if got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
			if again := Normalize(got); again != got {
				t.Fatalf("Normalize not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func FuzzNormalizeIdempotent(f *testing.F) {
	for _, seed := range []string{
		"",
		"plain",
		"a\r\nb",
		"\ufeff________________x",
		"\u00ef\u00bb\u00bf________________ y ",
		"\r\r\n\n",
		"\ufeff_______\ufeff________________________",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize(%q) = %q but Normalize of that = %q", in, once, twice)
		}
	})
}
