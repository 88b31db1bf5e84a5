package report

import (
	"fmt"
	"io"
	"strings"

	"eq-coach-service/internal/models"
)

// Render writes v to w as styled terminal text.
func Render(w io.Writer, v View) error {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("沟通报告"))
	b.WriteString("\n")

	if v.Scenario != "" {
		b.WriteString(ScenarioStyle.Render("练习场景  " + v.Scenario))
		b.WriteString("\n")
	}

	if len(v.Scores) > 0 {
		parts := make([]string, 0, len(v.Scores))
		for _, s := range v.Scores {
			parts = append(parts, fmt.Sprintf("%s %s", s.Label, ScoreStyle.Render(fmt.Sprintf("%d", s.Value))))
		}
		b.WriteString(strings.Join(parts, DimStyle.Render("  |  ")))
		b.WriteString("\n")
	}
	if v.Diagnosis != "" {
		b.WriteString(v.Diagnosis)
		b.WriteString("\n")
	}
	if v.Prep != nil {
		b.WriteString(DimStyle.Render(fmt.Sprintf("观点位置：%s", v.Prep.ConclusionPosition)))
		b.WriteString("\n")
	}

	b.WriteString(SectionStyle.Render("你的表达"))
	b.WriteString("\n")
	var notes []string
	for _, sp := range v.Spans {
		if !sp.Highlighted() {
			b.WriteString(sp.Text)
			continue
		}
		n := len(notes) + 1
		if sp.Segment.Type == models.HighlightGood {
			b.WriteString(GoodStyle.Render(sp.Text))
			notes = append(notes, GoodNoteStyle.Render(fmt.Sprintf("[%d] 亮点：%s", n, sp.Segment.Comment)))
		} else {
			b.WriteString(BadStyle.Render(sp.Text))
			notes = append(notes, BadNoteStyle.Render(fmt.Sprintf("[%d] 建议：%s", n, sp.Segment.Comment)))
		}
		b.WriteString(DimStyle.Render(fmt.Sprintf("[%d]", n)))
	}
	b.WriteString("\n")
	for _, n := range notes {
		b.WriteString("  ")
		b.WriteString(n)
		b.WriteString("\n")
	}

	if v.Rewrite != "" {
		b.WriteString(SectionStyle.Render("高情商参考"))
		b.WriteString("\n")
		b.WriteString(RewriteStyle.Render("“" + v.Rewrite + "”"))
		b.WriteString("\n")
		for i, s := range v.Steps {
			b.WriteString("  ")
			b.WriteString(StepLabelStyle.Render(fmt.Sprintf("Step %d: %s", i+1, s.Label)))
			b.WriteString(" “" + s.Content + "”\n")
		}
	}

	if len(v.Tips) > 0 {
		b.WriteString(SectionStyle.Render("更多技巧"))
		b.WriteString("\n")
		for i, t := range v.Tips {
			fmt.Fprintf(&b, "  %s %s\n", DimStyle.Render(fmt.Sprintf("%d.", i+1)), t)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
