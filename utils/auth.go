package utils

import (
	"slices"

	"forum-keeper/models"

	"github.com/bwmarrin/discordgo"
)

// Auth provides methods for authorization checks.
type Auth struct {
	developers []string
}

// NewAuth creates an Auth. Developers pass every check.
func NewAuth(developers []string) *Auth {
	return &Auth{developers: developers}
}

// IsDeveloper checks if a user is a developer.
func (a *Auth) IsDeveloper(userID string) bool {
	return slices.Contains(a.developers, userID)
}

// IsHelper checks if a member holds a helper role of the guild or can manage threads.
func (a *Auth) IsHelper(member *discordgo.Member, g *models.GuildSettings) bool {
	if member == nil {
		return false
	}
	if member.User != nil && a.IsDeveloper(member.User.ID) {
		return true
	}
	if member.Permissions&(discordgo.PermissionManageThreads|discordgo.PermissionAdministrator) != 0 {
		return true
	}
	return g != nil && g.IsHelper(member.Roles)
}

// IsOwnerOrHelper allows the thread owner as well as helpers.
func (a *Auth) IsOwnerOrHelper(member *discordgo.Member, ownerID string, g *models.GuildSettings) bool {
	if member != nil && member.User != nil && member.User.ID == ownerID {
		return true
	}
	return a.IsHelper(member, g)
}

// CanManageGuild checks the Manage Server permission needed by /setup.
func (a *Auth) CanManageGuild(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	if member.User != nil && a.IsDeveloper(member.User.ID) {
		return true
	}
	return member.Permissions&(discordgo.PermissionManageServer|discordgo.PermissionAdministrator) != 0
}
