package discord

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/asmahdi08/Theseus-Bot/internal/store"
)

const (
	colorReminder = 0x5865F2
	colorDelayed  = 0xED4245
	colorPoll     = 0x57F287
)

func reminderEmbed(title, body string, delayed bool) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       "⏰ " + title,
		Description: body,
		Color:       colorReminder,
	}
	if delayed {
		e.Color = colorDelayed
		e.Footer = &discordgo.MessageEmbedFooter{
			Text: "This reminder was delivered late because the bot was offline at the scheduled time.",
		}
	}
	return e
}

// pollEmbed renders a poll question with per-option tallies. A nil poll means
// no votes yet.
func pollEmbed(question string, options []string, p *store.Poll) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(options))
	for idx, opt := range options {
		votes := 0
		if p != nil {
			votes = p.VoteCount(idx)
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%d. %s", idx+1, opt),
			Value: fmt.Sprintf("%d votes", votes),
		})
	}
	return &discordgo.MessageEmbed{
		Title:  "📊 " + question,
		Fields: fields,
		Color:  colorPoll,
	}
}

// pollComponents builds one vote button per option, five to a row.
func pollComponents(options []string) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	var row []discordgo.MessageComponent
	for idx, opt := range options {
		row = append(row, discordgo.Button{
			Label:    opt,
			Style:    discordgo.SecondaryButton,
			CustomID: "poll_vote:" + strconv.Itoa(idx),
		})
		if len(row) == 5 {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}
	return rows
}
