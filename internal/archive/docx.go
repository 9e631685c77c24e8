// Package archive renders a meeting as a Word document and files it locally and on Drive.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomutex/godocx"
	"github.com/gomutex/godocx/docx"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

// DocxMIMEType is the content type of rendered exports
const DocxMIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

const (
	fontName = "Times New Roman"
	fontSize = 12
)

// RenderDocx writes the job's summary and transcript to path
func RenderDocx(job *types.AudioJob, summary *types.SummaryContent, path string) error {
	doc, err := godocx.NewDocument()
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	addRun(doc.AddParagraph(""), job.Filename, true, 16)
	addRun(doc.AddParagraph(""), fmt.Sprintf("Recorded %s  |  Duration %s",
		job.CreatedAt.Format("January 2, 2006 15:04"), job.Duration), false, 10)
	doc.AddParagraph("")

	if summary != nil {
		addRun(doc.AddParagraph(""), "Summary", true, 14)
		addRun(doc.AddParagraph(""), summary.MainSummary, false, fontSize)

		addList(doc, "Key Points", summary.BulletPoints)
		addList(doc, "Key Topics", summary.KeyTopics)
		addList(doc, "Action Items", summary.ActionItems)
		doc.AddParagraph("")
	}

	addRun(doc.AddParagraph(""), "Transcript", true, 14)
	for _, line := range strings.Split(job.Transcript, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			addRun(doc.AddParagraph(""), line, false, fontSize)
		}
	}

	return doc.SaveTo(path)
}

// RenderDocxBytes renders into a temporary file and returns its contents
func RenderDocxBytes(job *types.AudioJob, summary *types.SummaryContent) ([]byte, error) {
	dir, err := os.MkdirTemp("", "export-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "export.docx")
	if err := RenderDocx(job, summary, path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// ExportName is the download name for a job, e.g. standup.docx
func ExportName(job *types.AudioJob) string {
	base := strings.TrimSuffix(job.Filename, filepath.Ext(job.Filename))
	if base == "" {
		base = job.ID
	}
	return base + ".docx"
}

func addList(doc *docx.RootDoc, title string, items []string) {
	if len(items) == 0 {
		return
	}
	addRun(doc.AddParagraph(""), title, true, 13)
	for _, item := range items {
		addRun(doc.AddParagraph(""), "• "+item, false, fontSize)
	}
}

func addRun(p *docx.Paragraph, text string, bold bool, size uint64) {
	run := p.AddText(text).Font(fontName).Size(size).Color("000000")
	if bold {
		run.Bold(true)
	}
}
