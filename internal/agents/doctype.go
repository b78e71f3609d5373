package agents

import "strings"

// Supported document types, in detection priority order.
const (
	DocTypeComplaint    = "complaint"
	DocTypeAnswer       = "answer"
	DocTypeMotion       = "motion"
	DocTypeBrief        = "brief"
	DocTypeDemandLetter = "demand_letter"
	DocTypeMemorandum   = "memorandum"
)

var docTypeKeywords = []struct {
	docType  string
	keywords []string
}{
	{DocTypeComplaint, []string{"file a complaint", "file suit", "sue ", "initiate litigation", "causes of action"}},
	{DocTypeAnswer, []string{"answer the complaint", "respond to the complaint", "affirmative defense"}},
	{DocTypeMotion, []string{"motion to", "move to dismiss", "move for", "summary judgment"}},
	{DocTypeBrief, []string{"appellate brief", "brief in support", "brief in opposition"}},
	{DocTypeDemandLetter, []string{"demand letter", "settlement demand", "demand payment", "cease and desist"}},
}

// DetectDocumentType infers what to draft from the matter text. It scans
// the summary, objective, and document titles for type markers and falls
// back to a memorandum when nothing matches.
func DetectDocumentType(input map[string]any) string {
	var parts []string
	if s := stringField(input, "summary"); s != "" {
		parts = append(parts, s)
	}
	if s := stringField(input, "objective"); s != "" {
		parts = append(parts, s)
	}
	if meta := mapField(input, "metadata"); meta != nil {
		if s := stringField(meta, "objective"); s != "" {
			parts = append(parts, s)
		}
	}
	for _, doc := range sliceField(input, "documents") {
		if m, ok := doc.(map[string]any); ok {
			if title := stringField(m, "title"); title != "" {
				parts = append(parts, title)
			}
		}
	}

	text := strings.ToLower(strings.Join(parts, " "))
	for _, entry := range docTypeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.docType
			}
		}
	}
	return DocTypeMemorandum
}
