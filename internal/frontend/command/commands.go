// Package command provides the command registry, parser, and built-in
// command definitions of the dice front end.
package command

// Categories for organizing commands in help output.
const (
	CategoryDice    = "dice"
	CategoryCatalog = "catalog"
	CategorySystem  = "system"
)

// Handler identifiers mapping commands to session handlers.
const (
	HandlerRoll    = "roll"
	HandlerAdd     = "add"
	HandlerItems   = "items"
	HandlerRemove  = "remove"
	HandlerLast    = "last"
	HandlerHistory = "history"
	HandlerQuota   = "quota"
	HandlerHelp    = "help"
	HandlerQuit    = "quit"
)

// Command defines a couple-invocable command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage shows the argument syntax, without the command name.
	Usage string
	// Help is the short help text.
	Help string
	// Category groups the command in help output.
	Category string
	// Handler names the session handler that runs the command.
	Handler string
}

// BuiltinCommands returns every command of the dice front end.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "roll", Aliases: []string{"r", "dice", "lancer"}, Help: "Roll the dice: who pays, what to eat, what to do", Category: CategoryDice, Handler: HandlerRoll},
		{Name: "last", Aliases: []string{"again"}, Help: "Show the previous roll", Category: CategoryDice, Handler: HandlerLast},
		{Name: "history", Aliases: []string{"hist"}, Usage: "[count]", Help: "List recent rolls, newest first", Category: CategoryDice, Handler: HandlerHistory},
		{Name: "quota", Aliases: []string{"q"}, Help: "Show today's free rolls", Category: CategoryDice, Handler: HandlerQuota},

		{Name: "add", Aliases: []string{"a", "ajouter"}, Usage: "<payer|meal|activity> <emoji> <label> [*weight]", Help: "Add a custom option", Category: CategoryCatalog, Handler: HandlerAdd},
		{Name: "items", Aliases: []string{"i", "list", "ls"}, Usage: "[category]", Help: "List the options the dice can land on", Category: CategoryCatalog, Handler: HandlerItems},
		{Name: "remove", Aliases: []string{"rm", "del"}, Usage: "<id>", Help: "Remove one of your custom options", Category: CategoryCatalog, Handler: HandlerRemove},

		{Name: "help", Aliases: []string{"h", "?"}, Help: "Show available commands", Category: CategorySystem, Handler: HandlerHelp},
		{Name: "quit", Aliases: []string{"exit", "bye"}, Help: "Leave", Category: CategorySystem, Handler: HandlerQuit},
	}
}
