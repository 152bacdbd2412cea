package trellosync

import (
	"regexp"
	"strings"
	"time"
)

const (
	phoneLabel   = "📱 Telefone:"
	keywordLabel = "🔑 Motivo:"
	notesLabel   = "📝 Observações:"

	titleSeparator = " - "
	// ScheduledDateLayout is how scheduled dates appear in card titles.
	ScheduledDateLayout = "2006-01-02T15:04:05"
)

// scheduledSuffix matches the " - 📅 <date>" tail CardTitle appends.
var scheduledSuffix = regexp.MustCompile(`\s+-\s+📅\s*\S*\s*$`)

// opportunityMarker tags cards created by this CRM.
var opportunityMarker = regexp.MustCompile(`^\[crm:opportunity=([^\]\s]+)\]$`)

// Description is the structured content carried in a card description.
// Empty fields are absent.
type Description struct {
	Phone         string
	Keyword       string
	Notes         string
	OpportunityID string
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// EncodeDescription renders d as human readable card text. Notes may span
// several lines and always come after the single-line fields; the opportunity
// marker, when present, is the last line.
func EncodeDescription(d Description) string {
	var lines []string
	if phone := singleLine(d.Phone); phone != "" {
		lines = append(lines, phoneLabel+" "+phone)
	}
	if keyword := singleLine(d.Keyword); keyword != "" {
		lines = append(lines, keywordLabel+" "+keyword)
	}
	if notes := strings.TrimSpace(d.Notes); notes != "" {
		lines = append(lines, notesLabel, notes)
	}
	if id := singleLine(d.OpportunityID); id != "" {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "[crm:opportunity="+id+"]")
	}
	return strings.Join(lines, "\n")
}

// ParseDescription recovers the fields written by EncodeDescription. Unknown
// lines before the notes header are ignored; text typed freely into a card
// without any labels is treated as notes.
func ParseDescription(text string) Description {
	var d Description
	var notes []string
	inNotes := false
	sawLabel := false

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)

		if m := opportunityMarker.FindStringSubmatch(line); m != nil {
			d.OpportunityID = m[1]
			sawLabel = true
			continue
		}
		if inNotes {
			notes = append(notes, strings.TrimRight(raw, " \t"))
			continue
		}

		switch {
		case strings.HasPrefix(line, phoneLabel):
			d.Phone = strings.TrimSpace(strings.TrimPrefix(line, phoneLabel))
			sawLabel = true
		case strings.HasPrefix(line, keywordLabel):
			d.Keyword = strings.TrimSpace(strings.TrimPrefix(line, keywordLabel))
			sawLabel = true
		case strings.HasPrefix(line, notesLabel):
			inNotes = true
			sawLabel = true
			if rest := strings.TrimSpace(strings.TrimPrefix(line, notesLabel)); rest != "" {
				notes = append(notes, rest)
			}
		}
	}

	d.Notes = strings.TrimSpace(strings.Join(notes, "\n"))
	if !sawLabel {
		d.Notes = strings.TrimSpace(text)
	}
	return d
}

// CardTitle builds `<name>` or `<name> - 📅 <scheduled date>`.
func CardTitle(name string, scheduled *time.Time) string {
	title := strings.TrimSpace(name)
	if scheduled != nil {
		title += titleSeparator + "📅 " + scheduled.Format(ScheduledDateLayout)
	}
	return title
}

// NameFromCardTitle returns the text before the first " - " separator.
func NameFromCardTitle(title string) string {
	name, _, _ := strings.Cut(title, titleSeparator)
	return strings.TrimSpace(name)
}

// TrimScheduledSuffix removes only the scheduled date CardTitle appends, so
// names that contain " - " survive a round trip through the board.
func TrimScheduledSuffix(title string) string {
	return strings.TrimSpace(scheduledSuffix.ReplaceAllString(title, ""))
}

// parseDue reads a Trello due date. Empty or malformed values are absent.
func parseDue(due string) *time.Time {
	if due == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, due)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
