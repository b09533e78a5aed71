package discord

import (
	"github.com/bwmarrin/discordgo"

	"dlerbot/internal/session"
)

// Discord allows at most five buttons per row.
const maxButtonsPerRow = 5

var buttonStyles = map[session.ControlStyle]discordgo.ButtonStyle{
	session.StylePrimary:   discordgo.PrimaryButton,
	session.StyleSecondary: discordgo.SecondaryButton,
	session.StyleSuccess:   discordgo.SuccessButton,
	session.StyleDanger:    discordgo.DangerButton,
	session.StyleLink:      discordgo.LinkButton,
}

func embeds(v session.View) []*discordgo.MessageEmbed {
	if v.Embed == nil {
		return []*discordgo.MessageEmbed{}
	}
	e := &discordgo.MessageEmbed{
		Title:       v.Embed.Title,
		Description: v.Embed.Description,
		Color:       v.Embed.Color,
	}
	for _, f := range v.Embed.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return []*discordgo.MessageEmbed{e}
}

func components(v session.View) []discordgo.MessageComponent {
	rows := []discordgo.MessageComponent{}
	var row discordgo.ActionsRow
	for _, c := range v.Controls {
		btn := discordgo.Button{
			Label:    c.Label,
			Style:    buttonStyles[c.Style],
			Disabled: c.Disabled,
		}
		if c.Style == session.StyleLink {
			btn.URL = c.URL
		} else {
			btn.CustomID = CustomID(v.SessionID, c.Action)
		}
		row.Components = append(row.Components, btn)
		if len(row.Components) == maxButtonsPerRow {
			rows = append(rows, row)
			row = discordgo.ActionsRow{}
		}
	}
	if len(row.Components) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func responseData(v session.View) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		Content:    v.Content,
		Embeds:     embeds(v),
		Components: components(v),
	}
}

func webhookEdit(v session.View) *discordgo.WebhookEdit {
	content := v.Content
	e := embeds(v)
	c := components(v)
	return &discordgo.WebhookEdit{Content: &content, Embeds: &e, Components: &c}
}

func messageEdit(channelID, messageID string, v session.View) *discordgo.MessageEdit {
	content := v.Content
	e := embeds(v)
	c := components(v)
	return &discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Content:    &content,
		Embeds:     &e,
		Components: &c,
	}
}
