package legend

// Prompt variants tried in order per document. Both instruct the model to
// answer with the sentinel when a chunk holds no legend.
const (
	VariantNone      = 0
	VariantPrimary   = 1
	VariantSecondary = 2
)

// NoLegendSentinel is the answer the prompts request for chunks without a
// legend. Any response containing it is discarded.
const NoLegendSentinel = "NO_LEGEND"

const primaryPrompt = `Extract the transcript's **GRADE LEGEND** section verbatim.

Focus on CONTENT, not headers.

Identify any block whose primary purpose is to define grade codes and their meanings.
Such blocks typically contain multiple entries of the form:
- A = ...
- B = ...
- W = ...
- I = ...
- AU = ...
- P / NP / S / U / WF / WP, etc.

These may appear as:
- Code → description lists
- Paragraphs explaining what each grade symbol means
- Tables of grade codes
- Any cluster of grade symbols paired with definitions

Rules:
1. Copy the entire block **exactly as-is** (no rewriting, no formatting changes).
2. If multiple separate legend blocks exist, return all of them in the order found.
3. If nothing matches, output: NO_LEGEND`

const secondaryPrompt = `Find the GRADING SYSTEM or GRADE KEY in this transcript.

Look for ANY section that explains what letter grades mean. This includes:
- Tables with Grade and Quality Points columns
- Lists explaining A, B, C, D, F grades
- Sections titled "Grading System", "Grade Legend", "Marking System", "Grade Scale"
- Any explanation of codes like W (Withdraw), I (Incomplete), AU (Audit), P (Pass)

If you find such a section, copy it EXACTLY as it appears.
If not found, output: NO_LEGEND`

// BuildPrompt assembles the full prompt for one chunk and variant. Chunk
// text is appended untouched after a blank line.
func BuildPrompt(variant int, chunkText string) string {
	tpl := primaryPrompt
	if variant == VariantSecondary {
		tpl = secondaryPrompt
	}
	return tpl + "\n\n" + chunkText
}
