package llm

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

// MaxAttachmentText caps how much extracted file text is sent to a model.
const MaxAttachmentText = 100_000

var extraneousWhitespace = regexp.MustCompile(`[ \t\f\v]+`)

// AttachmentText returns the textual content of a non-image attachment.
// PDFs are converted to plain text; other files must be valid UTF-8.
func AttachmentText(a *types.Attachment) (string, error) {
	if a == nil {
		return "", nil
	}
	var text string
	if a.IsPDF() {
		t, err := pdfText(a.Data)
		if err != nil {
			return "", fmt.Errorf("attachment %s: %w", a.Name, err)
		}
		text = t
	} else {
		if !utf8.Valid(a.Data) {
			return "", fmt.Errorf("attachment %s: not a text file", a.Name)
		}
		text = string(a.Data)
	}
	if len(text) > MaxAttachmentText {
		text = text[:MaxAttachmentText]
	}
	return text, nil
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, content); err != nil {
		return "", err
	}
	return strings.TrimSpace(extraneousWhitespace.ReplaceAllString(b.String(), " ")), nil
}
