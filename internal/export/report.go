package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"readyforus/internal/domain"
)

// Snapshot is everything an export needs from a loaded session.
type Snapshot struct {
	Artifact        domain.Artifact
	Sections        []domain.Section
	Questions       []domain.Question
	Responses       map[string]domain.Response
	Skipped         map[string]bool
	Mode            domain.Mode
	ParticipantName string
	Now             time.Time
}

func (s Snapshot) name() string {
	if s.ParticipantName == "" {
		return "Participant"
	}
	return s.ParticipantName
}

// Answered takes precedence over skipped, same as the session rules.
func (s Snapshot) status(q domain.Question) domain.QuestionStatus {
	if r, ok := s.Responses[q.ID]; ok && domain.Answered(q, r) {
		return domain.StatusAnswered
	}
	if s.Skipped[q.ID] {
		return domain.StatusSkipped
	}
	return domain.StatusUnanswered
}

// Stats walks the snapshot's questions with the shared answered rule.
func (s Snapshot) Stats() domain.Stats {
	st := domain.Stats{Total: len(s.Questions)}
	for _, q := range s.Questions {
		switch s.status(q) {
		case domain.StatusAnswered:
			st.Answered++
		case domain.StatusSkipped:
			st.Skipped++
		default:
			st.Unanswered++
		}
	}
	if st.Total > 0 {
		st.Progress = (st.Answered * 100) / st.Total
	}
	return st
}

const answerMarker = "➤"

// Text renders the human-readable report. The TXT parser reads this
// exact shape back, so the two stay in lockstep.
func Text(s Snapshot) string {
	stats := s.Stats()
	var b strings.Builder

	banner := strings.Repeat("═", 60)
	b.WriteString(banner + "\n")
	fmt.Fprintf(&b, "  %s\n", s.Artifact.Title)
	if s.Artifact.Subtitle != "" {
		fmt.Fprintf(&b, "  %s\n", s.Artifact.Subtitle)
	}
	b.WriteString(banner + "\n\n")

	fmt.Fprintf(&b, "Completed by: %s\n", s.name())
	fmt.Fprintf(&b, "Date: %s\n", s.Now.Format("2006-01-02"))
	fmt.Fprintf(&b, "Progress: %d/%d questions answered\n", stats.Answered, stats.Total)
	if stats.Skipped > 0 {
		fmt.Fprintf(&b, "Skipped: %d questions\n", stats.Skipped)
	}
	b.WriteString("\n" + strings.Repeat("─", 60) + "\n\n")

	currentSection := ""
	for _, q := range s.Questions {
		if q.SectionID != currentSection {
			currentSection = q.SectionID
			for _, sec := range s.Sections {
				if sec.ID == currentSection {
					fmt.Fprintf(&b, "\n▸ %s\n", strings.ToUpper(sec.Title))
					b.WriteString(strings.Repeat("─", 40) + "\n\n")
					break
				}
			}
		}

		fmt.Fprintf(&b, "Q%d: %s\n", q.Order, q.Title)
		fmt.Fprintf(&b, "   %q\n\n", q.Prompt)

		switch s.status(q) {
		case domain.StatusAnswered:
			fmt.Fprintf(&b, "   %s %s\n", answerMarker, FormatResponse(q, s.Responses[q.ID]))
		case domain.StatusSkipped:
			fmt.Fprintf(&b, "   %s [Skipped]\n", answerMarker)
		default:
			fmt.Fprintf(&b, "   %s [Not answered]\n", answerMarker)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + banner + "\n")
	b.WriteString("  Ready for Us\n")
	if s.Artifact.Stage != "" {
		fmt.Fprintf(&b, "  %s\n", s.Artifact.Stage)
	}
	b.WriteString(banner + "\n")
	return b.String()
}

// JSONMeta is the meta block of a JSON export.
type JSONMeta struct {
	Artifact        domain.Artifact `json:"artifact"`
	ExportID        string          `json:"exportId"`
	ExportedAt      string          `json:"exportedAt"`
	ParticipantName string          `json:"participantName"`
	Mode            domain.Mode     `json:"mode"`
}

// JSONEntry pairs one question with its response and status.
type JSONEntry struct {
	Question QuestionPayload       `json:"question"`
	Response *domain.Response      `json:"response"`
	Status   domain.QuestionStatus `json:"status"`
}

// QuestionPayload is the trimmed question copy embedded in exports so
// the importer can match stale files against a changed schema.
type QuestionPayload struct {
	ID      string              `json:"id"`
	Title   string              `json:"title"`
	Prompt  string              `json:"prompt"`
	Type    domain.QuestionType `json:"type"`
	Options []domain.Option     `json:"options,omitempty"`
	Fields  []domain.Field      `json:"fields,omitempty"`
}

// JSONExport is the machine round-trip format.
type JSONExport struct {
	Meta      JSONMeta             `json:"meta"`
	Stats     domain.Stats         `json:"stats"`
	Responses map[string]JSONEntry `json:"responses"`
}

// BuildJSON assembles the JSON export document.
func BuildJSON(s Snapshot) JSONExport {
	out := JSONExport{
		Meta: JSONMeta{
			Artifact:        s.Artifact,
			ExportID:        uuid.NewString(),
			ExportedAt:      s.Now.UTC().Format(time.RFC3339),
			ParticipantName: s.name(),
			Mode:            s.Mode,
		},
		Stats:     s.Stats(),
		Responses: map[string]JSONEntry{},
	}
	for _, q := range s.Questions {
		entry := JSONEntry{
			Question: QuestionPayload{
				ID:      q.ID,
				Title:   q.Title,
				Prompt:  q.Prompt,
				Type:    q.Type,
				Options: q.Options,
				Fields:  q.Fields,
			},
			Status: s.status(q),
		}
		if r, ok := s.Responses[q.ID]; ok {
			entry.Response = &r
		}
		out.Responses[q.ID] = entry
	}
	return out
}

// JSON renders the export document as indented JSON bytes.
func JSON(s Snapshot) ([]byte, error) {
	doc := BuildJSON(s)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// FileName builds the download name for an export.
func FileName(participantName, ext string) string {
	safe := strings.ToLower(strings.TrimSpace(participantName))
	safe = strings.Join(strings.Fields(safe), "-")
	if safe == "" {
		safe = "participant"
	}
	return fmt.Sprintf("readyforus-%s.%s", safe, ext)
}

// ShareBlock renders one participant's answers for pasting into the
// couple prompt. Wrapped in named markers so two blocks can sit side
// by side without ambiguity.
func ShareBlock(s Snapshot) string {
	var b strings.Builder
	upper := strings.ToUpper(s.name())
	fmt.Fprintf(&b, "=== %s'S RESPONSES ===\n\n", upper)
	for _, q := range s.Questions {
		fmt.Fprintf(&b, "**Q%d: %s**\n", q.Order, q.Title)
		b.WriteString(q.Prompt + "\n")
		switch s.status(q) {
		case domain.StatusAnswered:
			fmt.Fprintf(&b, "Answer: %s\n\n", FormatResponse(q, s.Responses[q.ID]))
		case domain.StatusSkipped:
			b.WriteString("Answer: [Skipped]\n\n")
		default:
			b.WriteString("Answer: [Not answered]\n\n")
		}
	}
	fmt.Fprintf(&b, "=== END OF %s'S RESPONSES ===\n", upper)
	return b.String()
}

// Summary renders only answered questions, title and answer per line.
func Summary(s Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s\n\n", s.Artifact.Title, s.name())
	for _, q := range s.Questions {
		r, ok := s.Responses[q.ID]
		if !ok {
			continue
		}
		b.WriteString(q.Title + "\n")
		b.WriteString(FormatResponse(q, r) + "\n\n")
	}
	return b.String()
}
