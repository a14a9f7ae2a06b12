package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"readyforus/internal/domain"
	"readyforus/internal/importer"
)

// ErrTemplateMissing is returned when no prompt template exists for
// the requested kind and mode.
var ErrTemplateMissing = errors.New("prompt template not found")

var (
	possessiveARe = regexp.MustCompile(`\bA('s|')`)
	possessiveBRe = regexp.MustCompile(`\bB('s|')`)
)

// BuildIndividual assembles the single-participant reflection prompt:
// role, context bullets, participant header, the pre-formatted
// response block, output-format sections, constraints.
func BuildIndividual(parsed importer.ImportedFile, tpl *domain.PromptTemplate) (string, error) {
	if tpl == nil {
		return "", ErrTemplateMissing
	}
	var b strings.Builder

	b.WriteString("=== SYSTEM ROLE ===\n")
	b.WriteString(tpl.Role + "\n\n")

	b.WriteString("=== CONTEXT ===\n")
	for _, c := range tpl.Context {
		fmt.Fprintf(&b, "• %s\n", c)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "=== PARTICIPANT: %s ===\n\n", nameOf(parsed))

	b.WriteString("=== RESPONSES ===\n\n")
	b.WriteString(parsed.FormattedText + "\n")

	b.WriteString("=== REQUESTED OUTPUT FORMAT ===\n")
	for _, section := range tpl.OutputFormat {
		fmt.Fprintf(&b, "\n### %s\n", section.Section)
		for _, req := range section.Requirements {
			fmt.Fprintf(&b, "• %s\n", req)
		}
	}

	b.WriteString("\n=== CONSTRAINTS ===\n")
	for _, c := range tpl.Constraints {
		fmt.Fprintf(&b, "• %s\n", c)
	}
	return b.String(), nil
}

// BuildCouple assembles the two-participant prompt, substituting both
// [Person A]/[Person B] placeholders and possessive A/B shorthand with
// the real names. Substitution is word-boundary aware so unrelated
// occurrences of the letters survive.
func BuildCouple(parsedA, parsedB importer.ImportedFile, tpl *domain.PromptTemplate) (string, error) {
	if tpl == nil {
		return "", ErrTemplateMissing
	}
	nameA, nameB := nameOf(parsedA), nameOf(parsedB)
	var b strings.Builder

	b.WriteString("=== SYSTEM ROLE ===\n")
	b.WriteString(tpl.Role + "\n\n")

	b.WriteString("=== CONTEXT ===\n")
	for _, c := range tpl.Context {
		fmt.Fprintf(&b, "• %s\n", c)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "=== %s'S RESPONSES ===\n\n", strings.ToUpper(nameA))
	b.WriteString(responseBlock(parsedA) + "\n")

	fmt.Fprintf(&b, "=== %s'S RESPONSES ===\n\n", strings.ToUpper(nameB))
	b.WriteString(responseBlock(parsedB) + "\n")

	b.WriteString("=== REQUESTED OUTPUT FORMAT ===\n")
	for _, section := range tpl.OutputFormat {
		title := substituteNames(section.Section, nameA, nameB)
		fmt.Fprintf(&b, "\n### %s\n", title)
		for _, req := range section.Requirements {
			fmt.Fprintf(&b, "• %s\n", substituteNames(req, nameA, nameB))
		}
	}

	b.WriteString("\n=== CONSTRAINTS ===\n")
	for _, c := range tpl.Constraints {
		fmt.Fprintf(&b, "• %s\n", c)
	}
	return b.String(), nil
}

func substituteNames(s, nameA, nameB string) string {
	s = strings.ReplaceAll(s, "[Person A]", nameA)
	s = strings.ReplaceAll(s, "[Person B]", nameB)
	s = possessiveARe.ReplaceAllString(s, nameA+"$1")
	s = possessiveBRe.ReplaceAllString(s, nameB+"$1")
	return s
}

func nameOf(parsed importer.ImportedFile) string {
	if strings.TrimSpace(parsed.Name) == "" {
		return "Unknown"
	}
	return parsed.Name
}

// responseBlock trims a TXT import down to its question blocks so the
// prompt does not repeat banners and footers.
func responseBlock(parsed importer.ImportedFile) string {
	if parsed.Format != importer.FormatTXT {
		return parsed.FormattedText
	}
	lines := strings.Split(parsed.FormattedText, "\n")
	start := -1
	for i, l := range lines {
		if strings.HasPrefix(l, "Q1:") || strings.HasPrefix(l, "Q01:") {
			start = i
			break
		}
	}
	if start == -1 {
		return parsed.FormattedText
	}
	end := len(lines)
	for i := start; i < len(lines); i++ {
		if strings.Contains(lines[i], "═════") {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end], "\n")
}

// CoupleTemplate renders the couple prompt with paste placeholders
// instead of inline responses, for partners who export separately.
func CoupleTemplate(tpl *domain.PromptTemplate) (string, error) {
	if tpl == nil {
		return "", ErrTemplateMissing
	}
	var b strings.Builder

	b.WriteString("=== SYSTEM ROLE ===\n")
	b.WriteString(tpl.Role + "\n\n")

	b.WriteString("=== CONTEXT ===\n")
	for _, c := range tpl.Context {
		fmt.Fprintf(&b, "• %s\n", c)
	}
	b.WriteString("\n")

	b.WriteString("=== INSTRUCTIONS ===\n")
	b.WriteString("Paste BOTH partners' responses below (each partner copies their results using \"Copy My Results\").\n\n")

	b.WriteString("=== PARTICIPANT A RESPONSES ===\n")
	b.WriteString("[Paste Participant A's results here]\n\n")

	b.WriteString("=== PARTICIPANT B RESPONSES ===\n")
	b.WriteString("[Paste Participant B's results here]\n\n")

	b.WriteString("=== REQUESTED OUTPUT FORMAT ===\n")
	for _, section := range tpl.OutputFormat {
		fmt.Fprintf(&b, "\n### %s\n", section.Section)
		for _, req := range section.Requirements {
			fmt.Fprintf(&b, "• %s\n", req)
		}
	}

	b.WriteString("\n=== CONSTRAINTS ===\n")
	for _, c := range tpl.Constraints {
		fmt.Fprintf(&b, "• %s\n", c)
	}
	return b.String(), nil
}

// ValidateCompatibility checks that two parsed files can feed one
// couple prompt. Mixing a lite and a full set would skew the analysis,
// so mode mismatches are rejected with an explanation.
func ValidateCompatibility(parsedA, parsedB importer.ImportedFile) (bool, string) {
	if parsedA.Mode != parsedB.Mode {
		return false, fmt.Sprintf(
			"Mode mismatch: %s completed %s (%d questions), but %s completed %s (%d questions). Both must complete the same version.",
			nameOf(parsedA), parsedA.Mode, parsedA.QuestionCount,
			nameOf(parsedB), parsedB.Mode, parsedB.QuestionCount)
	}
	return true, "Files are compatible."
}
