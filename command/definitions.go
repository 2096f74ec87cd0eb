package command

import "github.com/bwmarrin/discordgo"

// Command and option names shared with the interaction handlers.
const (
	NameResolved  = "resolved"
	NameCancel    = "cancel"
	NameDuplicate = "duplicate"
	NameLink      = "link"
	NameSetup     = "setup"

	OptMinutes       = "minutes"
	OptOriginal      = "link"
	OptURL           = "url"
	OptForum         = "forum"
	OptResolvedTag   = "resolved_tag"
	OptDuplicateTag  = "duplicate_tag"
	OptUnansweredTag = "unanswered_tag"
	OptHelperRole    = "helper_role"

	SubSet    = "set"
	SubShow   = "show"
	SubRemove = "remove"
)

var forumOnly = []discordgo.ChannelType{discordgo.ChannelTypeGuildForum}

// ResolvedCommand schedules the resolve-lock of the current thread.
type ResolvedCommand struct {
	// MaxMinutes caps the minutes option; 0 leaves it open.
	MaxMinutes int
}

// Definition returns the application command definition.
func (c *ResolvedCommand) Definition() *discordgo.ApplicationCommand {
	minutes := &discordgo.ApplicationCommandOption{
		Name:        OptMinutes,
		Description: "Minutes to wait before locking (defaults to the server setting)",
		Type:        discordgo.ApplicationCommandOptionInteger,
		Required:    false,
		MinValue:    floatPtr(1),
	}
	if c.MaxMinutes > 0 {
		minutes.MaxValue = float64(c.MaxMinutes)
	}
	return &discordgo.ApplicationCommand{
		Name:        NameResolved,
		Description: "Mark this thread as resolved; it will be tagged and locked shortly",
		Options:     []*discordgo.ApplicationCommandOption{minutes},
	}
}

// CancelCommand cancels a pending lock or renews a warned thread.
type CancelCommand struct{}

// Definition returns the application command definition.
func (c *CancelCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        NameCancel,
		Description: "Cancel a pending lock or keep an inactive thread open",
	}
}

// DuplicateCommand marks the thread as a duplicate and locks it.
type DuplicateCommand struct{}

// Definition returns the application command definition.
func (c *DuplicateCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        NameDuplicate,
		Description: "Mark this thread as a duplicate of another one",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        OptOriginal,
				Description: "Link to the original thread",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    true,
			},
		},
	}
}

// LinkCommand manages the external link attached to a thread.
type LinkCommand struct{}

// Definition returns the application command definition.
func (c *LinkCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        NameLink,
		Description: "Manage the link attached to this thread",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        SubSet,
				Description: "Attach a link to this thread",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        OptURL,
						Description: "http(s) URL",
						Type:        discordgo.ApplicationCommandOptionString,
						Required:    true,
					},
				},
			},
			{
				Name:        SubShow,
				Description: "Show the link attached to this thread",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        SubRemove,
				Description: "Remove the link attached to this thread",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	}
}

// SetupCommand writes the guild settings.
type SetupCommand struct{}

// Definition returns the application command definition.
func (c *SetupCommand) Definition() *discordgo.ApplicationCommand {
	perm := int64(discordgo.PermissionManageServer)
	return &discordgo.ApplicationCommand{
		Name:                     NameSetup,
		Description:              "Configure the help forum for this server",
		DefaultMemberPermissions: &perm,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:         OptForum,
				Description:  "The help forum channel",
				Type:         discordgo.ApplicationCommandOptionChannel,
				ChannelTypes: forumOnly,
				Required:     true,
			},
			{
				Name:        OptResolvedTag,
				Description: "Tag id applied to resolved threads",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    true,
			},
			{
				Name:        OptDuplicateTag,
				Description: "Tag id applied to duplicate threads",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    true,
			},
			{
				Name:        OptUnansweredTag,
				Description: "Tag id applied until a non-owner replies",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    false,
			},
			{
				Name:        OptHelperRole,
				Description: "Role allowed to manage threads",
				Type:        discordgo.ApplicationCommandOptionRole,
				Required:    false,
			},
		},
	}
}

func floatPtr(f float64) *float64 { return &f }
