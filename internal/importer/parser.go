package importer

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"readyforus/internal/domain"
	"readyforus/internal/export"
	"readyforus/internal/schema"
)

//go:embed data/export.schema.json
var exportSchemaJSON []byte

var (
	exportSchemaOnce sync.Once
	exportSchema     *jsonschema.Schema
	exportSchemaErr  error
)

func compiledExportSchema() (*jsonschema.Schema, error) {
	exportSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(exportSchemaJSON))
		if err != nil {
			exportSchemaErr = fmt.Errorf("load export schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("export.schema.json", doc); err != nil {
			exportSchemaErr = fmt.Errorf("add export schema: %w", err)
			return
		}
		exportSchema, exportSchemaErr = c.Compile("export.schema.json")
	})
	return exportSchema, exportSchemaErr
}

// ImportedFile is the parsed, still unmapped reading of one uploaded
// results file.
type ImportedFile struct {
	FileName      string
	Format        Format
	Name          string
	Mode          domain.Mode
	QuestionCount int
	ArtifactID    string
	Stats         domain.Stats
	Answers       map[string]RawAnswer
	SkippedIDs    []string
	FormattedText string
}

// ParseFile dispatches on the file extension. Anything other than
// .json or .txt fails with ErrUnsupportedFormat before parsing.
func ParseFile(fileName string, data []byte) (ImportedFile, error) {
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".json"):
		return ParseJSON(fileName, data)
	case strings.HasSuffix(lower, ".txt"):
		return ParseTXT(fileName, data)
	default:
		return ImportedFile{}, fmt.Errorf("%w (%s)", ErrUnsupportedFormat, fileName)
	}
}

// ParseJSON reads a machine export. The file's own meta.mode and
// stats are trusted, not recomputed, since this system wrote them;
// structure is checked against the embedded JSON Schema first.
func ParseJSON(fileName string, data []byte) (ImportedFile, error) {
	sch, err := compiledExportSchema()
	if err != nil {
		return ImportedFile{}, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return ImportedFile{}, parseErr(FormatJSON, "invalid JSON", err)
	}
	if err := sch.Validate(inst); err != nil {
		return ImportedFile{}, parseErr(FormatJSON, "missing meta or responses", err)
	}

	var doc export.JSONExport
	if err := json.Unmarshal(data, &doc); err != nil {
		return ImportedFile{}, parseErr(FormatJSON, "malformed export document", err)
	}

	name := doc.Meta.ParticipantName
	if name == "" {
		name = "Unknown"
	}
	mode := doc.Meta.Mode
	if mode != domain.ModeLite && mode != domain.ModeFull {
		mode = schema.InferMode(doc.Stats.Total)
	}
	questionCount := doc.Stats.Total
	if questionCount == 0 {
		questionCount = len(doc.Responses)
	}

	answers := map[string]RawAnswer{}
	var skipped []string
	for id, entry := range doc.Responses {
		if entry.Status == domain.StatusSkipped {
			skipped = append(skipped, id)
			continue
		}
		if entry.Response == nil {
			continue
		}
		answers[id] = rawFromResponse(*entry.Response)
	}

	return ImportedFile{
		FileName:      fileName,
		Format:        FormatJSON,
		Name:          name,
		Mode:          mode,
		QuestionCount: questionCount,
		ArtifactID:    doc.Meta.Artifact.ID,
		Stats:         doc.Stats,
		Answers:       answers,
		SkippedIDs:    skipped,
		FormattedText: formatJSONResponses(doc.Responses),
	}, nil
}

// rawFromResponse lifts an already-typed response into the classifier's
// shape so JSON imports flow through the same mapper as TXT imports.
func rawFromResponse(r domain.Response) RawAnswer {
	if len(r.Fields) > 0 {
		fields := map[string]domain.FieldValue{}
		for k, v := range r.Fields {
			fields[k] = v
		}
		return RawAnswer{Kind: CompoundGuess, Text: r.ImportedText, Fields: fields}
	}
	kind := ScalarGuess
	if len(r.SelectedValues) > 1 {
		kind = ListGuess
	}
	return RawAnswer{
		Kind:           kind,
		Text:           r.Text,
		SelectedValue:  r.SelectedValue,
		SelectedValues: r.SelectedValues,
		RawItems:       r.SelectedValues,
		OtherText:      r.OtherText,
	}
}

// formatJSONResponses renders answered entries as markdown question
// blocks for reuse inside prompts.
func formatJSONResponses(responses map[string]export.JSONEntry) string {
	var b strings.Builder
	ordered := make([]string, 0, len(responses))
	for id := range responses {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)
	for _, id := range ordered {
		entry := responses[id]
		if entry.Response == nil {
			continue
		}
		num := strings.TrimPrefix(entry.Question.ID, "q")
		if num == "" {
			num = strings.TrimPrefix(id, "q")
		}
		num = strings.TrimLeft(num, "0")
		fmt.Fprintf(&b, "**Q%s: %s**\n", num, entry.Question.Title)
		b.WriteString(entry.Question.Prompt + "\n")
		fmt.Fprintf(&b, "Answer: %s\n\n", formatRawResponse(entry.Question.Type, *entry.Response))
	}
	return b.String()
}

// formatRawResponse renders a response using its stored values, without
// consulting the live schema. Prompt text tolerates slugs.
func formatRawResponse(qt domain.QuestionType, r domain.Response) string {
	switch qt {
	case domain.SingleSelect:
		out := r.SelectedValue
		if r.OtherText != "" {
			out += fmt.Sprintf(" (%s)", r.OtherText)
		}
		if out == "" {
			return "[No selection]"
		}
		return out
	case domain.MultiSelect:
		out := strings.Join(r.SelectedValues, ", ")
		if r.OtherText != "" {
			out += fmt.Sprintf(" (Other: %s)", r.OtherText)
		}
		if out == "" {
			return "[No selections]"
		}
		return out
	case domain.FreeText:
		if r.Text == "" {
			return "[No text]"
		}
		return r.Text
	case domain.Compound:
		var parts []string
		keys := make([]string, 0, len(r.Fields))
		for k := range r.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := r.Fields[k]
			if v.Empty() {
				continue
			}
			switch v.Kind {
			case domain.FieldList:
				parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(v.List, ", ")))
			case domain.FieldNum:
				parts = append(parts, fmt.Sprintf("%s: %d", k, *v.Num))
			default:
				parts = append(parts, fmt.Sprintf("%s: %s", k, v.Text))
			}
		}
		if len(parts) == 0 {
			return "[Partial response]"
		}
		return strings.Join(parts, "; ")
	}
	data, _ := json.Marshal(r)
	return string(data)
}

var (
	completedByRe = regexp.MustCompile(`(?i)Completed by:\s*(.+)`)
	progressRe    = regexp.MustCompile(`(?i)Progress:\s*(\d+)/(\d+)\s*questions`)
	skippedLineRe = regexp.MustCompile(`(?i)Skipped:\s*(\d+)\s*questions`)
	questionRe    = regexp.MustCompile(`^Q(\d+):\s*(.+)`)
	promptLineRe  = regexp.MustCompile(`^\s*"(.+)"$`)
)

// ParseTXT reads the human-readable report back. The writer in the
// export package produces exactly this shape.
func ParseTXT(fileName string, data []byte) (ImportedFile, error) {
	text := string(data)

	nameMatch := completedByRe.FindStringSubmatch(text)
	if nameMatch == nil {
		return ImportedFile{}, parseErr(FormatTXT, `missing "Completed by:" line`, nil)
	}
	name := strings.TrimSpace(nameMatch[1])
	if name == "" {
		name = "Unknown"
	}

	var stats domain.Stats
	if m := progressRe.FindStringSubmatch(text); m != nil {
		stats.Answered, _ = strconv.Atoi(m[1])
		stats.Total, _ = strconv.Atoi(m[2])
	}
	if m := skippedLineRe.FindStringSubmatch(text); m != nil {
		stats.Skipped, _ = strconv.Atoi(m[1])
	}

	answers, skipped := extractTXTAnswers(text)

	return ImportedFile{
		FileName:      fileName,
		Format:        FormatTXT,
		Name:          name,
		Mode:          schema.InferMode(stats.Total),
		QuestionCount: stats.Total,
		Stats:         stats,
		Answers:       answers,
		SkippedIDs:    skipped,
		FormattedText: strings.TrimSpace(text),
	}, nil
}

// extractTXTAnswers runs the line scan: Q-headers open blocks, the
// marker glyph starts answer accumulation, section dividers flush.
// Question numbers normalize to two-digit ids (q01, q02, ...).
func extractTXTAnswers(text string) (map[string]RawAnswer, []string) {
	answers := map[string]RawAnswer{}
	var skipped []string

	currentID := ""
	collecting := false
	var answerLines []string

	flush := func() {
		if currentID == "" || len(answerLines) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(answerLines, " "))
		switch joined {
		case "[Skipped]":
			skipped = append(skipped, currentID)
		case "[Not answered]", "":
		default:
			answers[currentID] = ClassifyAnswer(joined)
		}
		answerLines = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if m := questionRe.FindStringSubmatch(line); m != nil {
			flush()
			n, _ := strconv.Atoi(m[1])
			currentID = fmt.Sprintf("q%02d", n)
			collecting = false
			continue
		}
		if promptLineRe.MatchString(line) && currentID != "" && !collecting {
			continue
		}
		if idx := strings.Index(line, answerMarker); idx != -1 {
			collecting = true
			answerLines = append(answerLines, strings.TrimSpace(line[idx+len(answerMarker):]))
			continue
		}
		if strings.HasPrefix(line, "▸") || strings.Contains(line, "───") || strings.Contains(line, "═══") {
			flush()
			collecting = false
			continue
		}
		if collecting && strings.TrimSpace(line) != "" && !strings.HasPrefix(line, "Q") {
			answerLines = append(answerLines, strings.TrimSpace(line))
		}
	}
	flush()
	return answers, skipped
}

const answerMarker = "➤"
