package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dlerbot/internal/jobapi"
)

// Action identifies an interactive control.
type Action string

const (
	ActionVideo  Action = "video"
	ActionAudio  Action = "audio"
	ActionDelete Action = "delete"
)

type ControlStyle int

const (
	StylePrimary ControlStyle = iota
	StyleSecondary
	StyleSuccess
	StyleDanger
	StyleLink
)

// Control is a button. Link controls carry a URL instead of an Action.
type Control struct {
	Action   Action
	Label    string
	Style    ControlStyle
	URL      string
	Disabled bool
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []Field
}

// View is the complete content of a session's message. Every render
// replaces the previous view as a whole.
type View struct {
	SessionID string
	Content   string
	Embed     *Embed
	Controls  []Control
}

// ActiveControls returns the controls a user can still press.
func (v View) ActiveControls() []Control {
	var out []Control
	for _, c := range v.Controls {
		if !c.Disabled {
			out = append(out, c)
		}
	}
	return out
}

// Control returns the control bound to a, if present.
func (v View) Control(a Action) (Control, bool) {
	for _, c := range v.Controls {
		if c.Action == a && c.Style != StyleLink {
			return c, true
		}
	}
	return Control{}, false
}

const (
	colorInfo    = 0x5865F2
	colorSuccess = 0x57F287
	colorWarning = 0xFEE75C
	colorError   = 0xED4245
	colorMuted   = 0x95A5A6
)

type deleteState int

const (
	deleteIdle deleteState = iota
	deleteBusy
	deleteRetry
)

func formatChoices(disabled bool) []Control {
	return []Control{
		{Action: ActionVideo, Label: "Video", Style: StylePrimary, Disabled: disabled},
		{Action: ActionAudio, Label: "Audio only", Style: StyleSecondary, Disabled: disabled},
	}
}

func promptView(sourceURL string) View {
	return View{
		Content:  fmt.Sprintf("Choose a format for %s", sourceURL),
		Controls: formatChoices(false),
	}
}

func creatingView(sourceURL string, audioOnly bool) View {
	return View{
		Content:  fmt.Sprintf("Creating a %s download task for %s ...", formatName(audioOnly), sourceURL),
		Controls: formatChoices(true),
	}
}

func progressView(jobID, sourceURL string, audioOnly bool) View {
	return View{
		Embed: &Embed{
			Title:       "⏳ Download in progress",
			Description: "Task created. Please wait until it finishes...",
			Color:       colorInfo,
			Fields: []Field{
				{Name: "Task ID", Value: "`" + jobID + "`", Inline: true},
				{Name: "Format", Value: formatName(audioOnly), Inline: true},
				{Name: "Source", Value: sourceURL},
			},
		},
	}
}

func successEmbed(name, downloadURL string, expiresAt time.Time) *Embed {
	return &Embed{
		Title:       "✅ Download ready",
		Description: fmt.Sprintf("File: `%s`", name),
		Color:       colorSuccess,
		Fields: []Field{
			{Name: "Download URL", Value: downloadURL},
			{Name: "Available until", Value: fmt.Sprintf("<t:%d:R>", expiresAt.Unix())},
		},
	}
}

func successView(name, downloadURL, sourceURL string, expiresAt time.Time, st deleteState) View {
	del := Control{Action: ActionDelete, Label: "Delete file", Style: StyleDanger}
	switch st {
	case deleteBusy:
		del.Label = "Deleting..."
		del.Disabled = true
	case deleteRetry:
		del.Label = "Retry delete"
	}
	return View{
		Embed: successEmbed(name, downloadURL, expiresAt),
		Controls: []Control{
			{Label: "Download", Style: StyleLink, URL: downloadURL},
			{Label: "Source", Style: StyleLink, URL: sourceURL},
			del,
		},
	}
}

func failureView(reason string) View {
	return View{
		Content: fmt.Sprintf("❌ Download failed.\nReason: `%s`", reason),
	}
}

func errorView(stage string, err error) View {
	var headline string
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, ErrShuttingDown):
		headline = fmt.Sprintf("⚠️ Error while %s: the bot is shutting down.", stage)
	case jobapi.IsConnection(err):
		headline = fmt.Sprintf("⚠️ Error while %s: the download service is unreachable.", stage)
	case jobapi.IsProtocol(err):
		headline = fmt.Sprintf("⚠️ Error while %s: the download service sent an unexpected response.", stage)
	default:
		headline = fmt.Sprintf("⚠️ Error while %s.", stage)
	}
	return View{
		Content: fmt.Sprintf("%s\n`%v`", headline, err),
	}
}

func selectionTimeoutView(sourceURL string) View {
	return View{
		Content:  fmt.Sprintf("⌛ No format was chosen for %s. Run the command again to retry.", sourceURL),
		Controls: formatChoices(true),
	}
}

func deletedView(name string) View {
	return View{
		Embed: &Embed{
			Title:       "🗑️ File deleted",
			Description: fmt.Sprintf("`%s` was removed from the server.", name),
			Color:       colorMuted,
		},
	}
}

func cleaningUpView(name, downloadURL, sourceURL string, expiresAt time.Time) View {
	v := successView(name, downloadURL, sourceURL, expiresAt, deleteBusy)
	for i := range v.Controls {
		v.Controls[i].Disabled = true
	}
	v.Embed.Title = "🧹 Cleaning up"
	v.Embed.Color = colorWarning
	v.Embed.Fields = nil
	v.Embed.Description = fmt.Sprintf("The link for `%s` expired. Removing the file...", name)
	return v
}

func autoDeletedView(name string) View {
	return View{
		Embed: &Embed{
			Title:       "⌛ Link expired",
			Description: fmt.Sprintf("`%s` was removed automatically.", name),
			Color:       colorMuted,
		},
	}
}

func autoDeleteFailedView(name string, err error) View {
	return View{
		Embed: &Embed{
			Title:       "⚠️ Automatic cleanup failed",
			Description: fmt.Sprintf("`%s` could not be removed: `%v`", name, err),
			Color:       colorError,
		},
	}
}

func formatName(audioOnly bool) string {
	if audioOnly {
		return "audio"
	}
	return "video"
}
