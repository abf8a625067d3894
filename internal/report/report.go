// Package report renders one user's day (summary plus transcripts) as a .docx.
package report

import (
	"fmt"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"github.com/rcliao/voicenote/internal/model"
)

const (
	fontName = "Times New Roman"
	fontSize = 12
)

// Day is the content of a daily report. Summary may be nil.
type Day struct {
	UserID      string
	Date        string
	Summary     *model.DailySummary
	Transcripts []model.VoiceTranscript
}

// WriteDocx saves d to path.
func WriteDocx(d Day, path string) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("new document: %w", err)
	}

	addRun(doc.AddParagraph(""), fmt.Sprintf("Voice notes of %s, %s", d.UserID, d.Date), true, 16)
	doc.AddParagraph("")

	addRun(doc.AddParagraph(""), "Summary", true, 14)
	if d.Summary == nil {
		addRun(doc.AddParagraph(""), "No summary was generated for this day.", false, fontSize)
	} else {
		for _, line := range strings.Split(d.Summary.SummaryText, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			addRun(doc.AddParagraph(""), strings.TrimSpace(line), false, fontSize)
		}
		if d.Summary.Keywords != "" {
			p := doc.AddParagraph("")
			addRun(p, "Keywords: ", true, fontSize)
			addRun(p, d.Summary.Keywords, false, fontSize)
		}
	}
	doc.AddParagraph("")

	addRun(doc.AddParagraph(""), fmt.Sprintf("Transcripts (%d)", len(d.Transcripts)), true, 14)
	for _, t := range d.Transcripts {
		p := doc.AddParagraph("")
		addRun(p, t.CreatedAt.Local().Format("15:04")+"  ", true, fontSize)
		addRun(p, t.Text, false, fontSize)
	}

	if err := doc.SaveTo(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
