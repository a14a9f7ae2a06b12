package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"readyforus/internal/config"
	"readyforus/internal/db"
	"readyforus/internal/domain"
	"readyforus/internal/engine"
	"readyforus/internal/events"
	"readyforus/internal/export"
	"readyforus/internal/importer"
	"readyforus/internal/migrate"
	"readyforus/internal/prompt"
	"readyforus/internal/schema"
)

var rootCmd = &cobra.Command{
	Use:   "rfu",
	Short: "Ready for Us check-in CLI",
	Long: `Ready for Us is a slow-build relationship check-in you fill out locally.
- Workspace: your .readyforus directory holding one SQLite database; nothing leaves your machine.
- Modes: lite is the first 10 questions, full is all 24; upgrading keeps every answer.
- Answer, skip, and move freely; progress is saved after every step.
- Export your results as a text report or JSON file, reimport them later, or build
  an AI reflection prompt to paste into a chat of your choice.
- Couple flow: both partners export separately, then 'rfu couple' merges the two
  files into one side-by-side prompt.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("READYFORUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(answerCmd())
	rootCmd.AddCommand(skipCmd())
	rootCmd.AddCommand(nextCmd())
	rootCmd.AddCommand(prevCmd())
	rootCmd.AddCommand(jumpCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(questionsCmd())
	rootCmd.AddCommand(skippedCmd())
	rootCmd.AddCommand(upgradeCmd())
	rootCmd.AddCommand(nameCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(coupleCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
}

func startCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start or resume a check-in session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m := domain.Mode(mode)
				if mode == "" {
					cfg, err := config.LoadOptional(viper.GetString("workspace"))
					if err != nil {
						return err
					}
					m = cfg.DefaultMode()
				}
				if m != domain.ModeLite && m != domain.ModeFull {
					return fmt.Errorf("mode must be %q or %q", domain.ModeLite, domain.ModeFull)
				}
				s, err := e.Init(ctx, m)
				if err != nil {
					return err
				}
				q := s.Questions[s.Index]
				fmt.Printf("Session started in %s mode (%d questions).\n\n", s.Mode, len(s.Questions))
				printQuestion(q, s)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "lite or full (default from readyforus.yml)")
	return cmd
}

func answerCmd() *cobra.Command {
	var value, text, other string
	var values []string
	var fields []string
	cmd := &cobra.Command{
		Use:   "answer [question-id]",
		Short: "Answer a question (current one when no id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Load(ctx)
				if err != nil {
					return err
				}
				q := s.Questions[s.Index]
				if len(args) == 1 {
					id, err := resolveQuestionID(args[0], s.Questions)
					if err != nil {
						return err
					}
					for _, cand := range s.Questions {
						if cand.ID == id {
							q = cand
						}
					}
				}
				r, err := buildResponse(q, value, text, other, values, fields)
				if err != nil {
					return err
				}
				if err := e.SaveResponse(ctx, q.ID, r); err != nil {
					return err
				}
				fmt.Printf("Saved %s: %s\n", q.ID, export.FormatResponse(q, r))
				// Only advance when the cursor's own question was answered.
				if q.ID == s.Questions[s.Index].ID {
					if next, moved, err := e.Next(ctx); err == nil && moved {
						fmt.Println()
						s, _ := e.Load(ctx)
						printQuestion(next, s)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "selected option value or label (single_select)")
	cmd.Flags().StringSliceVar(&values, "values", nil, "selected option values or labels (multi_select)")
	cmd.Flags().StringVar(&other, "other", "", "free text for the 'other' option")
	cmd.Flags().StringVar(&text, "text", "", "free text answer")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "compound field as key=value (repeatable)")
	return cmd
}

// buildResponse turns CLI flags into a typed response for the question.
// Option inputs accept either the value slug or the visible label.
func buildResponse(q domain.Question, value, text, other string, values, fields []string) (domain.Response, error) {
	switch q.Type {
	case domain.SingleSelect:
		if value == "" {
			return domain.Response{}, errors.New("--value is required for this question")
		}
		opt, ok := importer.FindMatchingOption(value, q.Options)
		if !ok {
			return domain.Response{}, fmt.Errorf("%q matches none of the options", value)
		}
		return domain.Response{SelectedValue: opt.Value, OtherText: other}, nil

	case domain.MultiSelect:
		if len(values) == 0 {
			return domain.Response{}, errors.New("--values is required for this question")
		}
		var resolved []string
		for _, v := range values {
			opt, ok := importer.FindMatchingOption(v, q.Options)
			if !ok {
				return domain.Response{}, fmt.Errorf("%q matches none of the options", v)
			}
			resolved = append(resolved, opt.Value)
		}
		return domain.Response{SelectedValues: resolved, OtherText: other}, nil

	case domain.FreeText:
		if strings.TrimSpace(text) == "" {
			return domain.Response{}, errors.New("--text is required for this question")
		}
		return domain.Response{Text: text}, nil

	case domain.Compound:
		if len(fields) == 0 {
			return domain.Response{}, errors.New("--field key=value is required for this question")
		}
		fv := map[string]domain.FieldValue{}
		for _, pair := range fields {
			key, raw, found := strings.Cut(pair, "=")
			if !found {
				return domain.Response{}, fmt.Errorf("invalid --field %q, want key=value", pair)
			}
			var field *domain.Field
			for i := range q.Fields {
				if q.Fields[i].Key == key {
					field = &q.Fields[i]
				}
			}
			if field == nil {
				return domain.Response{}, fmt.Errorf("unknown field %q for %s", key, q.ID)
			}
			v, err := buildFieldValue(*field, raw)
			if err != nil {
				return domain.Response{}, err
			}
			fv[key] = v
		}
		return domain.Response{Fields: fv}, nil
	}
	return domain.Response{}, fmt.Errorf("unknown question type %q", q.Type)
}

func buildFieldValue(field domain.Field, raw string) (domain.FieldValue, error) {
	switch field.Type {
	case domain.FieldMultiSelect:
		var resolved []string
		for _, item := range strings.Split(raw, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			opt, ok := importer.FindMatchingOption(item, field.Options)
			if !ok {
				return domain.FieldValue{}, fmt.Errorf("field %q: %q matches none of the options", field.Key, item)
			}
			resolved = append(resolved, opt.Value)
		}
		return domain.ListValue(resolved), nil
	case domain.FieldSingleSelect:
		opt, ok := importer.FindMatchingOption(raw, field.Options)
		if !ok {
			return domain.FieldValue{}, fmt.Errorf("field %q: %q matches none of the options", field.Key, raw)
		}
		return domain.TextValue(opt.Value), nil
	case domain.FieldNumber:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return domain.FieldValue{}, fmt.Errorf("field %q: %q is not a number", field.Key, raw)
		}
		return domain.NumberValue(n), nil
	default:
		return domain.TextValue(raw), nil
	}
}

func skipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip [question-id]",
		Short: "Skip a question (current one when no id is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Load(ctx)
				if err != nil {
					return err
				}
				current := s.Questions[s.Index].ID
				id := current
				if len(args) == 1 {
					id, err = resolveQuestionID(args[0], s.Questions)
					if err != nil {
						return err
					}
				}
				if err := e.Skip(ctx, id); err != nil {
					return err
				}
				fmt.Printf("Skipped %s.\n", id)
				if id == current {
					if next, moved, err := e.Next(ctx); err == nil && moved {
						s, _ := e.Load(ctx)
						printQuestion(next, s)
					}
				}
				return nil
			})
		},
	}
}

func nextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Move to the next question",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, moved, err := e.Next(ctx)
				if err != nil {
					return err
				}
				if !moved {
					fmt.Println("Already at the last question.")
				}
				s, _ := e.Load(ctx)
				printQuestion(q, s)
				return nil
			})
		},
	}
}

func prevCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prev",
		Short: "Move to the previous question",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, moved, err := e.Previous(ctx)
				if err != nil {
					return err
				}
				if !moved {
					fmt.Println("Already at the first question.")
				}
				s, _ := e.Load(ctx)
				printQuestion(q, s)
				return nil
			})
		},
	}
}

func jumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jump <question-id|number>",
		Short: "Jump to a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Load(ctx)
				if err != nil {
					return err
				}
				id, err := resolveQuestionID(args[0], s.Questions)
				if err != nil {
					return err
				}
				q, err := e.JumpTo(ctx, id)
				if err != nil {
					return err
				}
				s, _ = e.Load(ctx)
				printQuestion(q, s)
				return nil
			})
		},
	}
}

// resolveQuestionID accepts "q07", "7", or "07".
func resolveQuestionID(arg string, questions []domain.Question) (string, error) {
	id := arg
	if n, err := strconv.Atoi(arg); err == nil {
		id = fmt.Sprintf("q%02d", n)
	}
	for _, q := range questions {
		if q.ID == id {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown question %q", arg)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Load(ctx)
				if err != nil {
					return err
				}
				stats := engine.SessionStats(s)
				name, err := e.Store.LoadParticipantName(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"mode":        s.Mode,
						"participant": name,
						"index":       s.Index,
						"current":     s.Questions[s.Index].ID,
						"stats":       stats,
					})
				}
				fmt.Printf("Mode: %s", s.Mode)
				if name != "" {
					fmt.Printf("    Participant: %s", name)
				}
				fmt.Printf("\nProgress: %d/%d answered (%d%%), %d skipped, %d open\n\n",
					stats.Answered, stats.Total, stats.Progress, stats.Skipped, stats.Unanswered)
				printQuestion(s.Questions[s.Index], s)
				return nil
			})
		},
	}
}

func questionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "questions",
		Short: "List all questions in the active set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Load(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					type row struct {
						ID     string                `json:"id"`
						Title  string                `json:"title"`
						Type   domain.QuestionType   `json:"type"`
						Status domain.QuestionStatus `json:"status"`
					}
					var rows []row
					for _, q := range s.Questions {
						st, _ := e.Status(ctx, q.ID)
						rows = append(rows, row{q.ID, q.Title, q.Type, st})
					}
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Type", "Status"})
				for _, q := range s.Questions {
					st, _ := e.Status(ctx, q.ID)
					marker := ""
					if q.ID == s.Questions[s.Index].ID {
						marker = " *"
					}
					tw.AppendRow(table.Row{q.ID + marker, q.Title, q.Type, st})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func skippedCmd() *cobra.Command {
	var first bool
	cmd := &cobra.Command{
		Use:   "skipped",
		Short: "List skipped questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if first {
					q, found, err := e.GoToFirstSkipped(ctx)
					if err != nil {
						return err
					}
					if !found {
						fmt.Println("Nothing skipped.")
						return nil
					}
					s, _ := e.Load(ctx)
					printQuestion(q, s)
					return nil
				}
				skipped, err := e.SkippedQuestions(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(skipped)
				}
				if len(skipped) == 0 {
					fmt.Println("Nothing skipped.")
					return nil
				}
				for _, q := range skipped {
					fmt.Printf("%s  %s\n", q.ID, q.Title)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&first, "first", false, "jump to the first skipped question")
	return cmd
}

func upgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade a lite session to the full question set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ok, err := e.CanUpgradeToFull(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("session is already in full mode")
				}
				s, err := e.Init(ctx, domain.ModeFull)
				if err != nil {
					return err
				}
				stats := engine.SessionStats(s)
				fmt.Printf("Upgraded to full mode: %d questions, %d already answered.\n",
					stats.Total, stats.Answered)
				printQuestion(s.Questions[s.Index], s)
				return nil
			})
		},
	}
}

func nameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "name <participant name>",
		Short: "Set the participant name used in exports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				name := strings.TrimSpace(strings.Join(args, " "))
				if name == "" {
					return errors.New("name must not be empty")
				}
				if err := e.Store.SaveParticipantName(ctx, name); err != nil {
					return err
				}
				if err := e.Events.Log(ctx, events.TypeNameSet, "participant", "", events.EventPayload{"name": name}); err != nil {
					return err
				}
				fmt.Printf("Participant name set to %q.\n", name)
				return nil
			})
		},
	}
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <text|json|prompt|share|summary|couple-template>",
		Short: "Export the session in one of the supported formats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				snap, err := buildSnapshot(ctx, e)
				if err != nil {
					return err
				}

				var content []byte
				ext := "txt"
				switch format {
				case "text":
					content = []byte(export.Text(snap))
				case "json":
					ext = "json"
					content, err = export.JSON(snap)
					if err != nil {
						return err
					}
				case "share":
					content = []byte(export.ShareBlock(snap))
				case "summary":
					content = []byte(export.Summary(snap))
				case "prompt":
					content, err = buildOwnPrompt(snap, e.Schema)
					if err != nil {
						return err
					}
				case "couple-template":
					sc := e.Schema
					text, err := prompt.CoupleTemplate(sc.Prompt(schema.KindCouple, snap.Mode))
					if err != nil {
						return err
					}
					content = []byte(text)
				default:
					return fmt.Errorf("unknown export format %q", format)
				}

				if err := e.Events.Log(ctx, events.TypeExportCreated, "export", format, nil); err != nil {
					return err
				}
				if out == "" && (format == "text" || format == "json") {
					out = exportPath(export.FileName(snap.ParticipantName, ext))
				}
				if out == "" {
					fmt.Print(string(content))
					return nil
				}
				if err := os.WriteFile(out, content, 0o644); err != nil {
					return err
				}
				fmt.Printf("Wrote %s.\n", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default depends on format)")
	return cmd
}

// buildOwnPrompt routes the live session through the same parser the
// import path uses, so every prompt route formats identically.
func buildOwnPrompt(snap export.Snapshot, sc *schema.Loader) ([]byte, error) {
	data, err := export.JSON(snap)
	if err != nil {
		return nil, err
	}
	parsed, err := importer.ParseJSON("session.json", data)
	if err != nil {
		return nil, err
	}
	text, err := prompt.BuildIndividual(parsed, sc.Prompt(schema.KindIndividual, snap.Mode))
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func buildSnapshot(ctx context.Context, e engine.Engine) (export.Snapshot, error) {
	s, err := e.Load(ctx)
	if err != nil {
		return export.Snapshot{}, err
	}
	name, err := e.Store.LoadParticipantName(ctx)
	if err != nil {
		return export.Snapshot{}, err
	}
	return export.Snapshot{
		Artifact:        e.Schema.Artifact(),
		Sections:        e.Schema.Sections(),
		Questions:       s.Questions,
		Responses:       s.Responses,
		Skipped:         s.Skipped,
		Mode:            s.Mode,
		ParticipantName: name,
		Now:             time.Now(),
	}, nil
}

func exportPath(name string) string {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil || cfg == nil || cfg.Export.Directory == "" {
		return name
	}
	if err := os.MkdirAll(cfg.Export.Directory, 0o755); err != nil {
		return name
	}
	return filepath.Join(cfg.Export.Directory, name)
}

func importCmd() *cobra.Command {
	var commit bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a results file (dry run unless --commit)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				parsed, err := importer.ParseFile(filepath.Base(args[0]), data)
				if err != nil {
					return err
				}
				if parsed.ArtifactID != "" && parsed.ArtifactID != e.Schema.Artifact().ID {
					fmt.Printf("Warning: file was exported from %q, current questionnaire is %q.\n\n",
						parsed.ArtifactID, e.Schema.Artifact().ID)
				}

				result := importer.ValidateAndMap(parsed.Answers, e.Schema.QuestionsByID(parsed.Mode))

				fmt.Printf("Parsed %s (%s, %s mode): %d answers, %d skipped.\n",
					parsed.FileName, parsed.Format, parsed.Mode, len(parsed.Answers), len(parsed.SkippedIDs))
				printMappingReview(result)

				if !commit {
					fmt.Println("\nDry run only; pass --commit to apply.")
					return nil
				}
				if err := e.ReplaceResponses(ctx, parsed.Mode, result.Mapped, parsed.SkippedIDs, parsed.FileName); err != nil {
					return err
				}
				name, err := e.Store.LoadParticipantName(ctx)
				if err != nil {
					return err
				}
				if name == "" && parsed.Name != "Unknown" {
					if err := e.Store.SaveParticipantName(ctx, parsed.Name); err != nil {
						return err
					}
				}
				fmt.Printf("\nImported %d responses.\n", len(result.Mapped))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&commit, "commit", false, "apply the mapped responses to the session")
	return cmd
}

func printMappingReview(result importer.MappingResult) {
	fmt.Printf("Mapped cleanly: %d. Needs review: %d.\n", len(result.Mapped)-len(result.NeedsReview), len(result.NeedsReview))
	if len(result.NeedsReview) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Question", "Warnings"})
	for _, id := range result.NeedsReview {
		ws := result.FieldWarnings[id]
		if len(ws) == 0 {
			ws = []string{"partially mapped"}
		}
		tw.AppendRow(table.Row{id, strings.Join(ws, "; ")})
	}
	tw.Render()
}

func coupleCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "couple <file-a> <file-b>",
		Short: "Build a couple reflection prompt from two export files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The two parses are independent; the compatibility check
			// runs once both are done.
			parsedA, err := parseExportFile(args[0])
			if err != nil {
				return err
			}
			parsedB, err := parseExportFile(args[1])
			if err != nil {
				return err
			}
			if ok, msg := prompt.ValidateCompatibility(parsedA, parsedB); !ok {
				return errors.New(msg)
			}
			sc, err := loadSchema()
			if err != nil {
				return err
			}
			text, err := prompt.BuildCouple(parsedA, parsedB, sc.Prompt(schema.KindCouple, parsedA.Mode))
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Print(text)
				return nil
			}
			if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s.\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	return cmd
}

func parseExportFile(path string) (importer.ImportedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return importer.ImportedFile{}, err
	}
	return importer.ParseFile(filepath.Base(path), data)
}

func resetCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe the session (keeps the participant name)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New("this deletes all responses; pass --force to confirm")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Reset(ctx); err != nil {
					return err
				}
				fmt.Println("Session reset.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm the reset")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage readyforus.yml"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default readyforus.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if name == "" {
				name = "Participant"
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(name)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s.\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "participant name to seed the config with")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the session event log"}
	var n int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				entries, err := e.Events.Tail(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Payload"})
				for _, ev := range entries {
					entity := ev.EntityKind
					if ev.EntityID != "" {
						entity += "/" + ev.EntityID
					}
					tw.AppendRow(table.Row{ev.TS, ev.Type, entity, ev.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVarP(&n, "lines", "n", 20, "number of events")
	lg.AddCommand(tail)
	return lg
}

// printQuestion renders one question with its options and current state.
func printQuestion(q domain.Question, s engine.Session) {
	fmt.Printf("Q%d [%s]: %s\n", q.Order, q.ID, q.Title)
	fmt.Printf("  %q\n", q.Prompt)
	switch q.Type {
	case domain.SingleSelect, domain.MultiSelect:
		for _, o := range q.Options {
			fmt.Printf("    - %s (%s)\n", o.Label, o.Value)
		}
	case domain.Compound:
		for _, f := range q.Fields {
			fmt.Printf("    - %s: %s (%s)\n", f.Key, f.Label, f.Type)
		}
	}
	if r, ok := s.Responses[q.ID]; ok && domain.Answered(q, r) {
		fmt.Printf("  Current answer: %s\n", export.FormatResponse(q, r))
	} else if s.Skipped[q.ID] {
		fmt.Println("  Currently skipped.")
	}
}

func loadSchema() (*schema.Loader, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if cfg != nil && cfg.Checkin.SchemaPath != "" {
		return schema.FromFile(cfg.Checkin.SchemaPath)
	}
	return schema.Load()
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	sc, err := loadSchema()
	if err != nil {
		return err
	}
	e := engine.New(conn, sc)
	return fn(ctx, e)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
