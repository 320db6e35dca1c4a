package engine

// Controller drives an entity from outside the world, usually a player.
// Player verbs receive their controller as the first argument.
type Controller interface {
	ControllerName() string
}

// SplitController separates a leading Controller from verb arguments.
func SplitController(args []any) (Controller, []any) {
	if len(args) == 0 {
		return nil, args
	}
	if c, ok := args[0].(Controller); ok {
		return c, args[1:]
	}
	return nil, args
}

// Attributes with meaning to the engine's collaborators.
const (
	AttrControlled = "controlled" // set on entities driven by a Controller
	AttrInventory  = "inventory"
	AttrInstigator = "instigator"
	AttrDead       = "dead"
	AttrHealth     = "health"
)
