package lifecycle

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// KeepOpenButtonID is the custom id of the button attached to stale warnings.
const KeepOpenButtonID = "keep_open"

const (
	colorWelcome   = 0x5865F2
	colorResolved  = 0x00ff00
	colorDuplicate = 0xFFA500
	colorWarning   = 0xffff00
	colorClosed    = 0xff0000
)

func welcomeMessage(ownerID string) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content: fmt.Sprintf("Welcome <@%s>!", ownerID),
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Help Guidelines",
			Description: "A helper will reach out to you soon! Use **/resolved** when finished!",
			Color:       colorWelcome,
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: []string{ownerID}},
	}
}

func resolvedMessage() *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Thread Resolved",
			Description: "This thread has been marked as resolved and is now locked.",
			Color:       colorResolved,
		}},
	}
}

func duplicateMessage(originalLink string) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title: "Duplicate Post",
			Description: fmt.Sprintf("This issue has already been addressed here:\n%s\n\n"+
				"To keep the channel organized, this thread is being closed. Please refer to the link above for the solution!", originalLink),
			Color: colorDuplicate,
		}},
	}
}

// staleWarningMessage warns the owner and offers the keep-open button.
func staleWarningMessage(ownerID string, closeIn time.Duration) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s>", ownerID),
		Embeds: []*discordgo.MessageEmbed{{
			Title: "Inactive Thread",
			Description: fmt.Sprintf("This thread has been inactive for a while. To keep the forum clean it will be closed in %s. "+
				"If you still need help, reply here or click the button below!", humanDays(closeIn)),
			Color: colorWarning,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{
					CustomID: KeepOpenButtonID,
					Label:    "Keep Post Open",
					Style:    discordgo.SuccessButton,
				},
			}},
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: []string{ownerID}},
	}
}

func autoCloseMessage() *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Thread Closed",
			Description: "This thread was closed after a long period of inactivity. Feel free to open a new post if you still need help.",
			Color:       colorClosed,
		}},
	}
}

// KeepOpenResponse replaces the warning message once the owner keeps the thread open.
func KeepOpenResponse() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		Content:    "✅ **Closure cancelled.** This thread will stay open for now!",
		Embeds:     []*discordgo.MessageEmbed{},
		Components: []discordgo.MessageComponent{},
	}
}

func humanDays(d time.Duration) string {
	days := int(d.Round(time.Hour).Hours()) / 24
	switch {
	case days > 1:
		return fmt.Sprintf("%d days", days)
	case days == 1:
		return "1 day"
	default:
		return d.Round(time.Minute).String()
	}
}
