package parser

import (
	"strings"
	"testing"
)

func TestHTMLParser_TableRowsCollapseToLines(t *testing.T) {
	input := `<html><body>
<h2>Grading System</h2>
<table>
<tr><th>Grade</th><th>Points</th><th>Meaning</th></tr>
<tr><td>A</td><td>4.0</td><td>Excellent</td></tr>
<tr><td>W</td><td></td><td>Withdrawal</td></tr>
</table>
</body></html>`
	p := &HTMLParser{}
	text, err := p.Parse(strings.NewReader(input), "transcript.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Grading System", "Grade Points Meaning", "A 4.0 Excellent", "W Withdrawal"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q: %q", want, text)
		}
	}
}

func TestHTMLParser_SkipsChromeAndScripts(t *testing.T) {
	input := `<html><head><script>var x = 1;</script><style>.a{}</style></head>
<body><nav>Site nav</nav><p>A = Excellent</p><footer>Copyright</footer></body></html>`
	p := &HTMLParser{}
	text, err := p.Parse(strings.NewReader(input), "page.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "A = Excellent") {
		t.Errorf("content paragraph missing: %q", text)
	}
	for _, banned := range []string{"var x", "Site nav", "Copyright", ".a{}"} {
		if strings.Contains(text, banned) {
			t.Errorf("output should not contain %q: %q", banned, text)
		}
	}
}
