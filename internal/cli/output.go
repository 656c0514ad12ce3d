package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/mcoot/rostersync/internal/api/response"
	"github.com/mcoot/rostersync/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case *model.Roster:
		o.printRoster(*v)
	case model.Roster:
		o.printRoster(v)
	case *model.Player:
		o.printPlayer(*v)
	case []model.Player:
		o.printPlayers(v)
	case *model.GearChoice:
		o.printGear(*v)
	case *response.Health:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printRoster(r model.Roster) {
	fmt.Fprintf(o.w, "Roster: %s (%s)\n", r.Name, r.Slug)
	fmt.Fprintf(o.w, "Updated: %s\n", r.UpdatedAt.Format(time.RFC3339))
}

func (o *Output) printPlayer(p model.Player) {
	fmt.Fprintf(o.w, "Player: %s (%s)\n", p.Name, p.ID)
	fmt.Fprintf(o.w, "Roster: %s\n", p.RosterSlug)
	fmt.Fprintf(o.w, "Role: %s\n", p.Role)
	if p.DeletedAt != nil {
		fmt.Fprintf(o.w, "Deleted: %s\n", p.DeletedAt.Format(time.RFC3339))
	}
}

func (o *Output) printPlayers(players []model.Player) {
	if len(players) == 0 {
		fmt.Fprintln(o.w, "No players")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE")
	for _, p := range players {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.Role)
	}
	_ = tw.Flush()
}

func (o *Output) printGear(g model.GearChoice) {
	fmt.Fprintf(o.w, "Gear for player %s\n", g.PlayerID)
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tSOURCE\tOBTAINED")
	for _, slot := range model.GearSlotOrder {
		choice := g.Slot(slot)
		obtained := "no"
		if choice.Obtained {
			obtained = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", slot, choice.Source, obtained)
	}
	_ = tw.Flush()
}

// printEvent prints one broadcast event as a line
func (o *Output) printEvent(now time.Time, event model.Event) {
	data, _ := model.EncodeEvent(event)
	if o.format == "json" {
		fmt.Fprintln(o.w, string(data))
		return
	}
	fmt.Fprintf(o.w, "[%s] %s: %s\n", now.Format("2006-01-02 15:04:05"), event.Type(), describeEvent(event))
}

func describeEvent(event model.Event) string {
	switch e := event.(type) {
	case model.PlayerUpdated:
		return fmt.Sprintf("%s (%s) is now %s/%s", e.Player.ID, e.Player.RosterSlug, e.Player.Name, e.Player.Role)
	case model.PlayerDeleted:
		return fmt.Sprintf("%s (%s) deleted", e.Player.Name, e.Player.ID)
	case model.PlayerActivated:
		return fmt.Sprintf("%s (%s) restored", e.Player.Name, e.Player.ID)
	case model.PlayerGearChoiceUpdated:
		return fmt.Sprintf("gear for %s changed", e.GearChoice.PlayerID)
	case model.RosterUpdated:
		return fmt.Sprintf("roster %q changed", e.Roster.Name)
	default:
		return ""
	}
}
