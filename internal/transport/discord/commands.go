package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/asmahdi08/Theseus-Bot/internal/jobs"
	"github.com/asmahdi08/Theseus-Bot/internal/polls"
	"github.com/asmahdi08/Theseus-Bot/internal/remind"
	"github.com/asmahdi08/Theseus-Bot/internal/store"
	"github.com/asmahdi08/Theseus-Bot/internal/timeparse"
	"github.com/asmahdi08/Theseus-Bot/pkg/logx"
)

func slashCommands() []*discordgo.ApplicationCommand {
	strOpt := func(name, desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        name,
			Description: desc,
			Required:    true,
		}
	}
	return []*discordgo.ApplicationCommand{
		{
			Name:        "settimezone",
			Description: "Set your timezone (IANA name, e.g. Asia/Kolkata)",
			Options:     []*discordgo.ApplicationCommandOption{strOpt("timezone", "IANA timezone name")},
		},
		{
			Name:        "setreminder",
			Description: "Set a reminder",
			Options: []*discordgo.ApplicationCommandOption{
				strOpt("title", "Title of your reminder"),
				strOpt("description", "Description of your reminder"),
				strOpt("date", "Date of reminder (format: DD-MM-YYYY)"),
				strOpt("time", "Time of the day to remind (24-hour format HH:MM)"),
			},
		},
		{
			Name:        "listreminders",
			Description: "List your pending reminders",
		},
		{
			Name:        "cancelreminder",
			Description: "Cancel a reminder by its job id",
			Options:     []*discordgo.ApplicationCommandOption{strOpt("job_id", "Job id from /listreminders")},
		},
		{
			Name:        "createpoll",
			Description: "Create a poll with multiple options",
			Options: []*discordgo.ApplicationCommandOption{
				strOpt("question", "The poll question"),
				strOpt("options", "Poll options separated by commas"),
			},
		},
		{
			Name:        "listpolls",
			Description: "List all active polls",
		},
		{
			Name:        "closepoll",
			Description: "Close a poll you created",
			Options:     []*discordgo.ApplicationCommandOption{strOpt("message_id", "Message id of the poll")},
		},
		{
			Name:        "setcommand",
			Description: "Add a custom command that replies with a predefined message",
			Options: []*discordgo.ApplicationCommandOption{
				strOpt("name", "Name of the command"),
				strOpt("message", "Message the command replies with"),
			},
		},
		{
			Name:        "removecommand",
			Description: "Remove an existing custom command",
			Options:     []*discordgo.ApplicationCommandOption{strOpt("name", "Name of the command")},
		},
		{
			Name:        "listcommands",
			Description: "List all custom commands",
		},
	}
}

func (a *Adapter) registerCommands() error {
	appID := a.sess.State.User.ID
	_, err := a.sess.ApplicationCommandBulkOverwrite(appID, a.cfg.GuildID, slashCommands())
	return err
}

func (a *Adapter) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HandlerTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		a.dispatchCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		a.handleVote(ctx, i)
	}
}

func (a *Adapter) dispatchCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	opts := make(map[string]string, len(data.Options))
	for _, o := range data.Options {
		opts[o.Name] = o.StringValue()
	}

	switch data.Name {
	case "settimezone":
		a.handleSetTimezone(ctx, i, opts["timezone"])
	case "setreminder":
		a.handleSetReminder(ctx, i, opts)
	case "listreminders":
		a.handleListReminders(ctx, i)
	case "cancelreminder":
		a.handleCancelReminder(ctx, i, opts["job_id"])
	case "createpoll":
		a.handleCreatePoll(ctx, i, opts["question"], opts["options"])
	case "listpolls":
		a.handleListPolls(ctx, i)
	case "closepoll":
		a.handleClosePoll(ctx, i, opts["message_id"])
	case "setcommand":
		a.handleSetCommand(ctx, i, opts["name"], opts["message"])
	case "removecommand":
		a.handleRemoveCommand(ctx, i, opts["name"])
	case "listcommands":
		a.handleListCommands(ctx, i)
	default:
		a.log.Warn("unknown slash command", logx.String("name", data.Name))
	}
}

// ---- reminders ----

func (a *Adapter) handleSetTimezone(ctx context.Context, i *discordgo.InteractionCreate, tz string) {
	user := interactionUser(i)
	if err := a.remind.SetTimezone(ctx, user.ID, tz); err != nil {
		a.respondEphemeral(i, userError(err))
		return
	}
	a.respondEphemeral(i, fmt.Sprintf("Timezone set to **%s**.", strings.TrimSpace(tz)))
}

func (a *Adapter) handleSetReminder(ctx context.Context, i *discordgo.InteractionCreate, opts map[string]string) {
	user := interactionUser(i)
	rec, err := a.remind.Create(ctx, user.ID, opts["title"], opts["description"], opts["date"], opts["time"])
	if err != nil {
		a.respondEphemeral(i, userError(err))
		return
	}
	a.respondEphemeral(i, fmt.Sprintf(
		"Reminder scheduled for %s (Job ID: `%s`)",
		rec.DueAt.Format("2006-01-02 15:04 MST"), rec.JobID))
}

func (a *Adapter) handleListReminders(ctx context.Context, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	recs, err := a.remind.List(ctx, user.ID)
	if err != nil {
		a.respondEphemeral(i, userError(err))
		return
	}
	if len(recs) == 0 {
		a.respondEphemeral(i, "You have no pending reminders.")
		return
	}

	// Show due times in the user's own zone where possible.
	loc := timeLocationFor(ctx, a.remind, user.ID)
	var b strings.Builder
	b.WriteString("Your reminders (soonest first):\n")
	for _, r := range recs {
		fmt.Fprintf(&b, "- **%s** at %s (Job ID: `%s`)\n",
			r.Title, r.DueAt.In(loc).Format("2006-01-02 15:04 MST"), r.JobID)
	}
	a.respondEphemeral(i, b.String())
}

func (a *Adapter) handleCancelReminder(ctx context.Context, i *discordgo.InteractionCreate, jobID string) {
	user := interactionUser(i)
	err := a.remind.Cancel(ctx, user.ID, strings.TrimSpace(jobID))
	if err != nil {
		a.respondEphemeral(i, userError(err))
		return
	}
	a.respondEphemeral(i, "Reminder cancelled.")
}

// ---- polls ----

func (a *Adapter) handleCreatePoll(ctx context.Context, i *discordgo.InteractionCreate, question, rawOptions string) {
	user := interactionUser(i)
	options, err := polls.ParseOptions(rawOptions)
	if err != nil {
		a.respondEphemeral(i, userError(err))
		return
	}

	// Send the poll message first; the message id keys the stored poll.
	embed := pollEmbed(question, options, nil)
	if err := a.sess.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: pollComponents(options),
		},
	}); err != nil {
		a.log.Warn("poll respond failed", logx.Err(err))
		return
	}
	msg, err := a.sess.InteractionResponse(i.Interaction)
	if err != nil {
		a.log.Warn("poll message lookup failed", logx.Err(err))
		return
	}
	if _, err := a.polls.Create(ctx, user.ID, i.ChannelID, msg.ID, question, options); err != nil {
		a.log.Warn("poll persist failed", logx.Err(err))
	}
}

func (a *Adapter) handleVote(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	idxStr, found := strings.CutPrefix(data.CustomID, "poll_vote:")
	if !found {
		return
	}
	option, err := strconv.Atoi(idxStr)
	if err != nil {
		return
	}
	user := interactionUser(i)

	p, err := a.polls.Vote(ctx, i.Message.ID, user.ID, option)
	if err != nil {
		a.respondEphemeral(i, userError(err))
		return
	}
	// Re-render the poll message in place with the new tallies.
	if err := a.sess.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{pollEmbed(p.Question, p.Options, &p)},
			Components: pollComponents(p.Options),
		},
	}); err != nil {
		a.log.Warn("vote update failed", logx.Err(err))
	}
}

func (a *Adapter) handleListPolls(ctx context.Context, i *discordgo.InteractionCreate) {
	ps, err := a.polls.List(ctx)
	if err != nil {
		a.respondEphemeral(i, userError(err))
		return
	}
	if len(ps) == 0 {
		a.respondEphemeral(i, "No active polls.")
		return
	}
	var b strings.Builder
	b.WriteString("Active polls:\n")
	for _, p := range ps {
		total := 0
		for idx := range p.Options {
			total += p.VoteCount(idx)
		}
		fmt.Fprintf(&b, "- **%s** (%d votes, message id `%s`)\n", p.Question, total, p.MessageID)
	}
	a.respondEphemeral(i, b.String())
}

func (a *Adapter) handleClosePoll(ctx context.Context, i *discordgo.InteractionCreate, messageID string) {
	user := interactionUser(i)
	p, err := a.polls.Close(ctx, strings.TrimSpace(messageID), user.ID)
	if err != nil {
		a.respondEphemeral(i, userError(err))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Poll **%s** closed. Final results:\n", p.Question)
	for idx, opt := range p.Options {
		fmt.Fprintf(&b, "- %s: %d votes\n", opt, p.VoteCount(idx))
	}
	a.respondEphemeral(i, b.String())
}

// ---- custom commands ----

func (a *Adapter) handleSetCommand(ctx context.Context, i *discordgo.InteractionCreate, name, message string) {
	if err := a.cmds.Set(ctx, name, message); err != nil {
		a.respondEphemeral(i, userError(err))
		return
	}
	a.respondEphemeral(i, "Command added successfully.")
}

func (a *Adapter) handleRemoveCommand(ctx context.Context, i *discordgo.InteractionCreate, name string) {
	removed, err := a.cmds.Remove(ctx, name)
	if err != nil {
		a.respondEphemeral(i, userError(err))
		return
	}
	if !removed {
		a.respondEphemeral(i, "Command doesn't exist.")
		return
	}
	a.respondEphemeral(i, "Command removed.")
}

func (a *Adapter) handleListCommands(ctx context.Context, i *discordgo.InteractionCreate) {
	cs, err := a.cmds.List(ctx)
	if err != nil {
		a.respondEphemeral(i, userError(err))
		return
	}
	if len(cs) == 0 {
		a.respondEphemeral(i, "No custom commands were found.")
		return
	}
	var b strings.Builder
	b.WriteString("Custom commands:\n")
	for _, c := range cs {
		fmt.Fprintf(&b, "- **%s%s**\n", messagePrefix, c.Name)
	}
	a.respondEphemeral(i, b.String())
}

// ---- helpers ----

func (a *Adapter) respondEphemeral(i *discordgo.InteractionCreate, content string) {
	err := a.sess.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		a.log.Warn("interaction respond failed", logx.Err(err))
	}
}

// userError translates domain errors into user-facing messages; anything
// unexpected is logged upstream and shown generically.
func userError(err error) string {
	switch {
	case errors.Is(err, remind.ErrNoTimezone):
		return "You haven't set your timezone yet. Run `/settimezone` first."
	case errors.Is(err, timeparse.ErrInvalidFormat):
		return "Invalid date/time format. Use DD-MM-YYYY and HH:MM (24-hour)."
	case errors.Is(err, timeparse.ErrUnknownTimezone):
		return "Unknown timezone. Use an IANA name like `Europe/Berlin`."
	case errors.Is(err, timeparse.ErrPastInstant):
		return "Please choose a future time."
	case errors.Is(err, jobs.ErrUnavailable):
		return "Scheduler not ready. Please try again in a moment."
	case errors.Is(err, store.ErrNotFound):
		return "Nothing found with that id."
	case errors.Is(err, store.ErrCommandExists):
		return "Command with that name already exists."
	case errors.Is(err, polls.ErrTooFewOptions), errors.Is(err, polls.ErrTooManyOptions),
		errors.Is(err, polls.ErrNotCreator):
		return err.Error()
	default:
		return "Something went wrong. Please try again."
	}
}

func timeLocationFor(ctx context.Context, rs *remind.Service, userID string) *time.Location {
	tz, err := rs.Timezone(ctx, userID)
	if err != nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
