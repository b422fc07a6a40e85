package language

import "strings"

type entry struct {
	iso1      string
	tesseract string
	alt       string
	display   string
	word      string
}

var languages = []entry{
	{"en", "eng", "", "English", "english"},
	{"ar", "ara", "", "Arabic", "arabic"},
	{"fa", "fas", "per", "Persian", "persian"},
	{"ur", "urd", "", "Urdu", "urdu"},
	{"he", "heb", "", "Hebrew", "hebrew"},
	{"tr", "tur", "", "Turkish", "turkish"},
	{"es", "spa", "", "Spanish", "spanish"},
	{"fr", "fra", "fre", "French", "french"},
	{"de", "deu", "ger", "German", "german"},
	{"it", "ita", "", "Italian", "italian"},
	{"pt", "por", "", "Portuguese", "portuguese"},
	{"nl", "nld", "dut", "Dutch", "dutch"},
	{"ru", "rus", "", "Russian", "russian"},
	{"pl", "pol", "", "Polish", "polish"},
	{"hi", "hin", "", "Hindi", "hindi"},
	{"ja", "jpn", "", "Japanese", "japanese"},
	{"ko", "kor", "", "Korean", "korean"},
	{"zh", "chi_sim", "zho", "Chinese (Simplified)", "chinese"},
}

var index = func() map[string]*entry {
	m := make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		m[e.iso1] = e
		m[e.tesseract] = e
		m[e.word] = e
		if e.alt != "" {
			m[e.alt] = e
		}
	}
	return m
}()

func lookup(code string) *entry {
	return index[strings.ToLower(strings.TrimSpace(code))]
}

// Tesseract returns the traineddata code for code. Unrecognized input is
// returned trimmed; traineddata names are case sensitive.
func Tesseract(code string) string {
	if e := lookup(code); e != nil {
		return e.tesseract
	}
	return strings.TrimSpace(code)
}

// DisplayName returns a human-readable name, or the code itself when unknown.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	return strings.TrimSpace(code)
}

// NormalizeList maps every entry to its traineddata code, dropping blanks
// and duplicates while keeping the first-seen order.
func NormalizeList(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		mapped := Tesseract(code)
		if mapped == "" {
			continue
		}
		if _, ok := seen[mapped]; ok {
			continue
		}
		seen[mapped] = struct{}{}
		out = append(out, mapped)
	}
	return out
}

// Joined returns codes in the "eng+ara" form Tesseract accepts on its
// command line and in log output.
func Joined(codes []string) string {
	return strings.Join(NormalizeList(codes), "+")
}
