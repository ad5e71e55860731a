package anglefix

import (
	"strings"

	"github.com/df-mc/dragonfly/server/cmd"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
)

// SessionOf returns the session of a player handled by a Handler, or nil.
func SessionOf(p *player.Player) *Session {
	h, ok := p.Handler().(*Handler)
	if !ok {
		return nil
	}
	return h.session
}

// Command returns the operator command for the plugin:
//
//	/anglefix reload   re-read the config file
//	/anglefix maps     list the target maps
//
// Register it with cmd.Register.
func (pl *Plugin) Command() cmd.Command {
	return cmd.New("anglefix", "Manage the teleport angle fix.", nil,
		reloadCommand{plugin: pl},
		mapsCommand{plugin: pl},
	)
}

// reloadCommand re-reads the config file.
type reloadCommand struct {
	plugin *Plugin
	Sub    cmd.SubCommand `cmd:"reload"`
}

func (c reloadCommand) Run(_ cmd.Source, o *cmd.Output, _ *world.Tx) {
	if err := c.plugin.Reload(); err != nil {
		o.Errorf("Failed to reload config: %v", err)
		return
	}
	o.Printf("Reloaded target maps: %s", describeMaps(c.plugin.filter.Names()))
}

func (c reloadCommand) Allow(src cmd.Source) bool {
	return consoleOnly(src)
}

// mapsCommand lists the target maps.
type mapsCommand struct {
	plugin *Plugin
	Sub    cmd.SubCommand `cmd:"maps"`
}

func (c mapsCommand) Run(_ cmd.Source, o *cmd.Output, _ *world.Tx) {
	o.Printf("Target maps: %s", describeMaps(c.plugin.filter.Names()))
}

func (c mapsCommand) Allow(src cmd.Source) bool {
	return consoleOnly(src)
}

// consoleOnly rejects players so only the server console can manage the plugin.
func consoleOnly(src cmd.Source) bool {
	_, isPlayer := src.(*player.Player)
	return !isPlayer
}

func describeMaps(names []string) string {
	if len(names) == 0 {
		return "all maps"
	}
	return strings.Join(names, ", ")
}
