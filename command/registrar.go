package command

import "github.com/bwmarrin/discordgo"

// Command is an interface for application commands.
type Command interface {
	Definition() *discordgo.ApplicationCommand
}

// AllCommands returns all the command instances.
// maxResolveMinutes caps /resolved minutes.
func AllCommands(maxResolveMinutes int) []Command {
	return []Command{
		&ResolvedCommand{MaxMinutes: maxResolveMinutes},
		&CancelCommand{},
		&DuplicateCommand{},
		&LinkCommand{},
		&SetupCommand{},
	}
}

// GetCommandDefinitions returns a slice of all command definitions.
func GetCommandDefinitions(maxResolveMinutes int) []*discordgo.ApplicationCommand {
	cmds := AllCommands(maxResolveMinutes)
	defs := make([]*discordgo.ApplicationCommand, len(cmds))
	for i, cmd := range cmds {
		defs[i] = cmd.Definition()
	}
	return defs
}
