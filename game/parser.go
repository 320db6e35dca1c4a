package game

import (
	"strings"
)

// Command is a parsed input line. Verb is lower case with aliases applied;
// Args keep their case because place and creature names are capitalized.
type Command struct {
	Verb string
	Args []string
}

// Rest joins the arguments from i on with single spaces.
func (c Command) Rest(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

var verbAliases = map[string]string{
	// Movement
	"go":     "move",
	"walk":   "move",
	"run":    "move",
	"head":   "move",
	"travel": "move",

	// Combat
	"hit":    "attack",
	"fight":  "attack",
	"strike": "attack",
	"kill":   "attack",
	"bite":   "attack",

	// Items
	"get":   "pickup",
	"take":  "pickup",
	"grab":  "pickup",
	"equip": "wield",
	"hold":  "wield",
	"make":  "craft",
	"build": "craft",
	"inv":   "inventory",
	"i":     "inventory",
	"items": "listitems",

	// Looking around
	"look":      "listobjects",
	"l":         "listobjects",
	"creatures": "listobjects",
	"exits":     "paths",
	"places":    "dumpplaces",
	"status":    "stats",

	// Turns
	"wait": "pass",
	"z":    "pass",
	"quit": "leave",

	// Help
	"commands": "list",
	"help":     "guide",
	"?":        "guide",
}

// Parse splits a raw line into a Command. A leading command prefix such
// as "!" or "/" is stripped.
func Parse(input string) Command {
	input = strings.TrimSpace(input)
	input = strings.TrimLeft(input, "!/")
	words := strings.Fields(input)
	if len(words) == 0 {
		return Command{}
	}

	verb := strings.ToLower(words[0])
	if alias, ok := verbAliases[verb]; ok {
		verb = alias
	}
	return Command{Verb: verb, Args: words[1:]}
}
