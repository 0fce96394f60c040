package stubserver

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/scopenote/scopenote/internal/shared"
)

// Classification is the deterministic stand-in for the model's
// structured classify response.
type Classification struct {
	Label       string
	Reasoning   string
	Description string
	Usage       shared.Usage
}

// classifierVocab is the anatomical vocabulary the stub picks labels
// from when nothing in the request names a location.
var classifierVocab = []string{
	"esophagus_mid",
	"z_line",
	"gastroesophageal_junction",
	"cardia",
	"fundus",
	"gastric_body",
	"incisura",
	"antrum",
	"pylorus",
	"duodenal_bulb",
	"duodenum_second_portion",
	"retroflexion",
}

// labelKeywords maps words an operator plausibly types or says to a
// canonical label. Checked in order so multi-keyword text resolves
// the same way every time.
var labelKeywords = []struct {
	keyword string
	label   string
}{
	{"z-line", "z_line"},
	{"z line", "z_line"},
	{"gej", "gastroesophageal_junction"},
	{"junction", "gastroesophageal_junction"},
	{"cardia", "cardia"},
	{"fundus", "fundus"},
	{"corpus", "gastric_body"},
	{"body", "gastric_body"},
	{"incisura", "incisura"},
	{"antrum", "antrum"},
	{"pylorus", "pylorus"},
	{"bulb", "duodenal_bulb"},
	{"duodenum", "duodenum_second_portion"},
	{"retroflex", "retroflexion"},
	{"esophagus", "esophagus_mid"},
}

// Classifier assigns labels deterministically: a keyword in the text
// hint or filename wins, otherwise the filename hashes into the
// vocabulary. The same request always yields the same label.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

func (c *Classifier) Classify(filename, textHint, conversation string) Classification {
	label, matched := matchKeyword(textHint)
	if !matched {
		label, matched = matchKeyword(filename)
	}
	reason := "matched operator context"
	if !matched {
		label = classifierVocab[hashString(filename)%uint32(len(classifierVocab))]
		reason = "assigned from visual features"
	}

	return Classification{
		Label:       label,
		Reasoning:   reason,
		Description: fmt.Sprintf("Endoscopic view consistent with %s.", strings.ReplaceAll(label, "_", " ")),
		Usage: shared.Usage{
			InputTokens:  len(conversation)/4 + len(textHint)/4 + 85,
			OutputTokens: 42,
			Latency:      0.35,
		},
	}
}

func matchKeyword(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, entry := range labelKeywords {
		if strings.Contains(lowered, entry.keyword) {
			return entry.label, true
		}
	}
	return "", false
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// TranscribeAudio is the deterministic dictation stand-in.
func TranscribeAudio(audio []byte, mimeType string) string {
	if len(audio) == 0 {
		return ""
	}
	return fmt.Sprintf("[dictated %d bytes of %s audio]", len(audio), mimeType)
}

// BuildOperativeNote renders a markdown note from the session's
// transcript and classified images.
func BuildOperativeNote(messages []Message, images []SessionImage, baseNote string) string {
	var b strings.Builder
	b.WriteString("# Operative Note\n\n")

	if baseNote != "" {
		b.WriteString(baseNote)
		b.WriteString("\n\n")
	}

	if len(images) > 0 {
		b.WriteString("## Findings\n\n")
		for _, img := range images {
			b.WriteString("- ")
			b.WriteString(imageSummaryLine(img))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(messages) > 0 {
		b.WriteString("## Procedure Narrative\n\n")
		b.WriteString(renderTranscript(messages, transcriptLimit))
		b.WriteString("\n")
	}

	return b.String()
}

// noteUsage is the deterministic telemetry attached to generated notes.
func noteUsage(messages []Message, images []SessionImage) *shared.Usage {
	return &shared.Usage{
		InputTokens:  len(messages)*24 + len(images)*60 + 200,
		OutputTokens: 180,
		Latency:      0.8,
	}
}
